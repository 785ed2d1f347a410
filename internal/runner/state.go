package runner

import "context"

// State is a position in the turn state machine.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstReply
	StateAwaitingTool
	StateAwaitingFinalReply
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingFirstReply:
		return "AWAITING_FIRST_REPLY"
	case StateAwaitingTool:
		return "AWAITING_TOOL"
	case StateAwaitingFinalReply:
		return "AWAITING_FINAL_REPLY"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Hooks let a front end follow a turn. Any field may be nil.
type Hooks struct {
	OnTransition func(ctx context.Context, from, to State)
	OnToolCall   func(ctx context.Context, name string, args map[string]any)
	OnToolReturn func(ctx context.Context, name string, output string, err error)
}

func (h Hooks) transition(ctx context.Context, from, to State) {
	if h.OnTransition != nil {
		h.OnTransition(ctx, from, to)
	}
}

func (h Hooks) toolCall(ctx context.Context, name string, args map[string]any) {
	if h.OnToolCall != nil {
		h.OnToolCall(ctx, name, args)
	}
}

func (h Hooks) toolReturn(ctx context.Context, name, output string, err error) {
	if h.OnToolReturn != nil {
		h.OnToolReturn(ctx, name, output, err)
	}
}
