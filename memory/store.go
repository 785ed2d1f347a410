package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is the durable backing of a Log. Records are opaque encoded entries;
// a store must keep them in append order and make Append and Clear atomic.
type Store interface {
	Append(ctx context.Context, records []json.RawMessage) error
	Records(ctx context.Context) ([]json.RawMessage, error)
	Clear(ctx context.Context) error
	Close() error
}

// PersistenceError reports a failed read or write of the backing store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("conversation log %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// MemoryStore keeps records in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu   sync.Mutex
	recs []json.RawMessage
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, records []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.recs = append(s.recs, append(json.RawMessage(nil), r...))
	}
	return nil
}

func (s *MemoryStore) Records(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]json.RawMessage, len(s.recs))
	for i, r := range s.recs {
		out[i] = append(json.RawMessage(nil), r...)
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.recs = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
