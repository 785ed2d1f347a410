package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/petasbytes/toolchat/internal/telemetry"
)

// Log is the conversation log. It owns every message ever written and is the
// single source of truth for what the model has seen.
type Log struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the logger used to report repairs.
func WithLogger(l *slog.Logger) Option {
	return func(lg *Log) {
		lg.logger = l
	}
}

// WithClock overrides the creation-time source.
func WithClock(now func() time.Time) Option {
	return func(lg *Log) {
		lg.now = now
	}
}

// WithIDs overrides the entry id generator.
func WithIDs(next func() string) Option {
	return func(lg *Log) {
		lg.newID = next
	}
}

// Open wraps store in a Log. The log takes ownership of the store and
// releases it on Close.
func Open(store Store, opts ...Option) *Log {
	l := &Log{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append validates msgs, stamps each with an id and creation time, and writes
// them in one durable store append. Nothing is written if any message is invalid.
func (l *Log) Append(ctx context.Context, msgs ...Message) ([]Entry, error) {
	entries := make([]Entry, 0, len(msgs))
	for i, m := range msgs {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("append message %d: %w", i, err)
		}
		entries = append(entries, l.stamp(m))
	}
	if err := l.write(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AppendReply appends the function message answering call, linking the two so
// that the call's intent is closed.
func (l *Log) AppendReply(ctx context.Context, call Entry, msg Message) (Entry, error) {
	if !call.IsCall() {
		return Entry{}, fmt.Errorf("%w: entry %s is not a function call", ErrInvalidMessage, call.ID)
	}
	if msg.Role != RoleFunction {
		return Entry{}, fmt.Errorf("%w: reply must be a function message, got %q", ErrInvalidMessage, msg.Role)
	}
	if err := msg.Validate(); err != nil {
		return Entry{}, err
	}
	e := l.stamp(msg)
	e.CallID = call.ID
	if err := l.write(ctx, []Entry{e}); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Load returns the sanitized, pairing-repaired history without storage metadata.
// Discarded entries are reported through logs and telemetry, never as errors.
func (l *Log) Load(ctx context.Context) ([]Message, error) {
	entries, malformed, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	kept, stats := Repair(entries)
	stats.Malformed = malformed
	l.report(ctx, stats)

	out := make([]Message, len(kept))
	for i, e := range kept {
		out[i] = e.Message
	}
	return out, nil
}

// Entries returns every decodable entry as stored, without repair.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	entries, _, err := l.read(ctx)
	return entries, err
}

// Clear empties the log.
func (l *Log) Clear(ctx context.Context) error {
	if err := l.store.Clear(ctx); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	l.logger.Info("conversation log cleared")
	return nil
}

// Close releases the underlying store.
func (l *Log) Close() error {
	return l.store.Close()
}

func (l *Log) stamp(m Message) Entry {
	return Entry{ID: l.newID(), CreatedAt: l.now(), Message: m}
}

func (l *Log) write(ctx context.Context, entries []Entry) error {
	recs := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return &PersistenceError{Op: "encode", Err: err}
		}
		recs = append(recs, b)
	}
	if err := l.store.Append(ctx, recs); err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}
	return nil
}

func (l *Log) read(ctx context.Context) ([]Entry, int, error) {
	recs, err := l.store.Records(ctx)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "read", Err: err}
	}
	entries := make([]Entry, 0, len(recs))
	malformed := 0
	for i, r := range recs {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			l.logger.Debug("skipping malformed log entry", "index", i, "err", err)
			malformed++
			continue
		}
		entries = append(entries, e)
	}
	return entries, malformed, nil
}

func (l *Log) report(ctx context.Context, s RepairStats) {
	if s.Dropped() == 0 {
		return
	}
	l.logger.Warn("conversation log repaired",
		"malformed", s.Malformed,
		"invalid", s.Invalid,
		"orphaned", s.Orphaned,
	)
	telemetry.RecordDropped("malformed", s.Malformed)
	telemetry.RecordDropped("invalid", s.Invalid)
	telemetry.RecordDropped("orphaned", s.Orphaned)

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	telemetry.Emit("log_repaired", map[string]any{
		"turn_id":   turnID,
		"malformed": s.Malformed,
		"invalid":   s.Invalid,
		"orphaned":  s.Orphaned,
	})
}
