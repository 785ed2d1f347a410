package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/petasbytes/toolchat/internal/provider"
	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/petasbytes/toolchat/internal/windowing"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
)

var (
	// ErrEmptyInput is returned for blank user text. Nothing is appended.
	ErrEmptyInput = errors.New("empty user input")
	// ErrToolRoundLimit is returned when the model asks for another tool after
	// the round limit. The extra request is not persisted.
	ErrToolRoundLimit = errors.New("tool round limit reached")
)

// Toolbox is the part of the tool registry a runner needs.
type Toolbox interface {
	Declarations() []tools.Declaration
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// Result is the outcome of one turn.
type Result struct {
	Text   string
	State  State
	TurnID string
}

type Runner struct {
	gateway provider.Gateway
	tools   Toolbox
	log     *memory.Log

	logger         *slog.Logger
	hooks          Hooks
	system         string
	maxToolRounds  int
	tokenBudget    int
	gatewayTimeout time.Duration
	counter        windowing.TokenCounter
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func WithHooks(h Hooks) Option {
	return func(r *Runner) {
		r.hooks = h
	}
}

// WithSystem sets the system prompt sent with every request.
func WithSystem(prompt string) Option {
	return func(r *Runner) {
		r.system = prompt
	}
}

// WithMaxToolRounds bounds how many tool calls one turn may execute. Values
// below 1 are ignored.
func WithMaxToolRounds(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxToolRounds = n
		}
	}
}

// WithTokenBudget enables the pair-safe send window. Zero sends the full history.
func WithTokenBudget(n int) Option {
	return func(r *Runner) {
		r.tokenBudget = n
	}
}

// WithGatewayTimeout bounds each model request. Zero disables the bound.
func WithGatewayTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.gatewayTimeout = d
	}
}

func New(gw provider.Gateway, tb Toolbox, log *memory.Log, opts ...Option) *Runner {
	r := &Runner{
		gateway:       gw,
		tools:         tb,
		log:           log,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxToolRounds: 1,
		counter:       windowing.HeuristicCounter{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunTurn runs one user turn to DONE or FAILED.
//
// Gateway and persistence failures are returned. Tool failures are not: they
// become the function message the model sees next.
func (r *Runner) RunTurn(ctx context.Context, userText string) (Result, error) {
	if strings.TrimSpace(userText) == "" {
		return Result{State: StateIdle}, ErrEmptyInput
	}

	// Get turnID from context if present, else generate once for this turn.
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
	}
	ctx = telemetry.WithTurnID(ctx, turnID)
	telemetry.EmitLocalFeatures(ctx, userText)

	t := &turn{Runner: r, id: turnID, state: StateIdle}
	text, err := t.run(ctx, userText)
	if err != nil {
		t.fail(ctx, err)
		return Result{State: t.state, TurnID: turnID}, err
	}
	telemetry.RecordTurn("done")
	return Result{Text: text, State: t.state, TurnID: turnID}, nil
}

// turn carries the per-turn state so the Runner itself stays stateless
// between turns.
type turn struct {
	*Runner
	id    string
	state State
}

func (t *turn) run(ctx context.Context, userText string) (string, error) {
	t.enter(ctx, StateAwaitingFirstReply)
	if _, err := t.log.Append(ctx, memory.UserText(userText)); err != nil {
		return "", err
	}

	reply, err := t.generate(ctx)
	if err != nil {
		return "", err
	}

	for rounds := 0; reply.IsCall(); rounds++ {
		if rounds >= t.maxToolRounds {
			t.logger.Warn("model requested a tool after the round limit",
				"turn_id", t.id, "rounds", rounds, "tool", reply.Calls()[0].Name)
			return "", ErrToolRoundLimit
		}

		calls := reply.Calls()
		if len(calls) > 1 {
			names := make([]string, 0, len(calls)-1)
			for _, c := range calls[1:] {
				names = append(names, c.Name)
			}
			t.logger.Warn("model requested several tools; running the first only",
				"turn_id", t.id, "tool", calls[0].Name, "discarded", names)
			reply = memory.ModelCall(calls[0])
		}

		entries, err := t.log.Append(ctx, reply)
		if err != nil {
			return "", err
		}
		t.enter(ctx, StateAwaitingTool)

		result := t.execTool(ctx, calls[0])
		if _, err := t.log.AppendReply(ctx, entries[0], result); err != nil {
			return "", err
		}
		t.enter(ctx, StateAwaitingFinalReply)

		if reply, err = t.generate(ctx); err != nil {
			return "", err
		}
	}

	if _, err := t.log.Append(ctx, reply); err != nil {
		return "", err
	}
	t.enter(ctx, StateDone)
	return reply.Text(), nil
}

func (t *turn) enter(ctx context.Context, to State) {
	from := t.state
	t.state = to
	t.logger.Debug("turn transition", "turn_id", t.id, "from", from.String(), "to", to.String())
	telemetry.RecordTransition(to.String())
	telemetry.Emit("turn_state", map[string]any{
		"turn_id": t.id,
		"from":    from.String(),
		"to":      to.String(),
	})
	t.hooks.transition(ctx, from, to)
}

func (t *turn) fail(ctx context.Context, err error) {
	t.logger.Error("turn failed", "turn_id", t.id, "state", t.state.String(), "err", err)
	t.enter(ctx, StateFailed)
	telemetry.RecordTurn("failed")
}

// generate loads the repaired history, windows it and asks the model for the
// next message.
func (t *turn) generate(ctx context.Context) (memory.Message, error) {
	history, err := t.log.Load(ctx)
	if err != nil {
		return memory.Message{}, err
	}
	if history, err = t.window(history); err != nil {
		return memory.Message{}, err
	}

	req := provider.Request{System: t.system, History: history}
	// Only include tools when NOT in calibration mode
	if !telemetry.CalibrationModeEnabled() {
		req.Tools = t.tools.Declarations()
	}

	if t.gatewayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.gatewayTimeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := t.gateway.Generate(ctx, req)
	telemetry.RecordGateway(t.gateway.Name(), time.Since(start))
	if err == nil {
		err = checkReply(reply)
	}
	if err != nil {
		var ge *provider.GatewayError
		if !errors.As(err, &ge) {
			err = &provider.GatewayError{Provider: t.gateway.Name(), Err: err}
		}
		return memory.Message{}, err
	}
	return reply, nil
}

// checkReply rejects a malformed model message before anything is persisted.
func checkReply(m memory.Message) error {
	if m.Role != memory.RoleModel {
		return fmt.Errorf("%w: reply has role %q", memory.ErrInvalidMessage, m.Role)
	}
	return m.Validate()
}

// window applies the token budget. The newest group must always fit; when it
// does not the budget is misconfigured and the turn fails before any request.
func (t *turn) window(history []memory.Message) ([]memory.Message, error) {
	if t.tokenBudget <= 0 {
		return history, nil
	}
	window, stats := windowing.PrepareSendWindow(history, t.tokenBudget, t.counter)

	telemetry.Emit("window_prepared", map[string]any{
		"turn_id":            t.id,
		"model":              t.gateway.Name(),
		"budget":             stats.Budget,
		"total_estimated":    stats.Total,
		"included_groups":    stats.IncludedGroups,
		"skipped_groups":     stats.SkippedGroups,
		"over_budget_newest": stats.OverBudgetNewest,
	})
	t.logger.Debug("window prepared",
		"turn_id", t.id,
		"budget", stats.Budget,
		"est_total", stats.Total,
		"groups_in", stats.IncludedGroups,
		"groups_skip", stats.SkippedGroups,
	)

	if stats.OverBudgetNewest {
		return nil, windowing.ErrOverBudget
	}
	return window, nil
}

// execTool runs call and returns the function message answering it. It never
// fails: tool errors are carried in the message payload.
func (t *turn) execTool(ctx context.Context, call memory.FunctionCall) memory.Message {
	t.hooks.toolCall(ctx, call.Name, call.Args)

	inSize := 0
	if b, err := json.Marshal(call.Args); err == nil && call.Args != nil {
		inSize = len(b)
	}

	start := time.Now()
	out, err := t.tools.Invoke(ctx, call.Name, call.Args)
	elapsed := time.Since(start)

	telemetry.RecordToolCall(call.Name, err != nil, elapsed)
	fields := map[string]any{
		"tool_name":   call.Name,
		"duration_ms": elapsed.Milliseconds(),
		"input_size":  inSize,
		"output_size": len(out),
		"turn_id":     t.id,
		"error":       nil,
	}
	if err != nil {
		// Generic string so raw payloads never reach telemetry.
		fields["error"] = "tool error"
	}
	telemetry.Emit("tool_exec", fields)
	t.hooks.toolReturn(ctx, call.Name, out, err)

	if err != nil {
		t.logger.Info("tool failed", "turn_id", t.id, "tool", call.Name, "err", err)
		return memory.FunctionError(call.Name, err.Error())
	}
	t.logger.Debug("tool returned", "turn_id", t.id, "tool", call.Name, "output_size", len(out))
	return memory.FunctionResult(call.Name, out)
}
