// Package storetest holds the behavioural contract every memory.Store must meet.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/petasbytes/toolchat/memory"
)

// Run exercises a store produced by newStore. Each subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) memory.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Empty", func(t *testing.T) {
		s := newStore(t)
		recs, err := s.Records(ctx)
		if err != nil {
			t.Fatalf("records: %v", err)
		}
		if len(recs) != 0 {
			t.Fatalf("expected empty store, got %d records", len(recs))
		}
	})

	t.Run("AppendPreservesOrder", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, raw(`{"n":1}`, `{"n":2}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.Append(ctx, raw(`{"n":3}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		assertSeq(t, s, 1, 2, 3)
	})

	t.Run("ReadsAreRepeatable", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, raw(`{"n":1}`, `{"n":2}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		assertSeq(t, s, 1, 2)
		assertSeq(t, s, 1, 2)
	})

	t.Run("ClearEmpties", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, raw(`{"n":1}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		assertSeq(t, s)
	})

	t.Run("AppendAfterClear", func(t *testing.T) {
		s := newStore(t)
		if err := s.Append(ctx, raw(`{"n":1}`, `{"n":2}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if err := s.Append(ctx, raw(`{"n":7}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
		assertSeq(t, s, 7)
	})

	t.Run("ClearOnEmptyStore", func(t *testing.T) {
		s := newStore(t)
		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear on empty store: %v", err)
		}
		assertSeq(t, s)
	})
}

func raw(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func assertSeq(t *testing.T, s memory.Store, want ...int) {
	t.Helper()
	recs, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != len(want) {
		t.Fatalf("record count: got %d want %d", len(recs), len(want))
	}
	for i, r := range recs {
		var v struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(r, &v); err != nil {
			t.Fatalf("record %d not valid JSON: %v (%s)", i, err, r)
		}
		if v.N != want[i] {
			t.Fatalf("record %d: got n=%d want %d", i, v.N, want[i])
		}
	}
}
