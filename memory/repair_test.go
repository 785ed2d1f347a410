package memory_test

import (
	"strings"
	"testing"

	"github.com/petasbytes/toolchat/memory"
)

// Entry constructors keyed by id so expectations read as id sequences.
func user(id, text string) memory.Entry {
	return memory.Entry{ID: id, Message: memory.UserText(text)}
}

func text(id, s string) memory.Entry {
	return memory.Entry{ID: id, Message: memory.ModelText(s)}
}

func call(id, name string) memory.Entry {
	return memory.Entry{ID: id, Message: memory.ModelCall(memory.FunctionCall{Name: name})}
}

func result(id, name, callID string) memory.Entry {
	return memory.Entry{ID: id, CallID: callID, Message: memory.FunctionResult(name, "ok")}
}

func ids(es []memory.Entry) string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.ID
	}
	return strings.Join(out, ",")
}

func TestRepair_PairingInvariant(t *testing.T) {
	tests := []struct {
		name     string
		in       []memory.Entry
		want     string
		orphaned int
		invalid  int
	}{
		{
			name: "complete tool turn kept",
			in:   []memory.Entry{user("u", "2+2?"), call("c", "calculate"), result("r", "calculate", "c"), text("m", "4")},
			want: "u,c,r,m",
		},
		{
			name:     "back to back calls both dropped",
			in:       []memory.Entry{call("a", "x"), call("b", "y")},
			want:     "",
			orphaned: 2,
		},
		{
			name:     "trailing open call dropped",
			in:       []memory.Entry{user("u", "hi"), call("c", "calculate")},
			want:     "u",
			orphaned: 1,
		},
		{
			name:     "call followed by user drops the call only",
			in:       []memory.Entry{user("u1", "a"), call("c", "calculate"), user("u2", "b")},
			want:     "u1,u2",
			orphaned: 1,
		},
		{
			name:     "result without preceding call dropped",
			in:       []memory.Entry{user("u", "hi"), result("r", "calculate", ""), text("m", "ok")},
			want:     "u,m",
			orphaned: 1,
		},
		{
			name:     "name mismatch drops both sides",
			in:       []memory.Entry{user("u", "hi"), call("c", "calculate"), result("r", "get_weather", "")},
			want:     "u",
			orphaned: 2,
		},
		{
			name:     "call id mismatch drops both sides",
			in:       []memory.Entry{call("c", "calculate"), result("r", "calculate", "other")},
			want:     "",
			orphaned: 2,
		},
		{
			name:     "dropped orphan cannot resurrect a later pairing",
			in:       []memory.Entry{user("u", "hi"), call("c", "calculate"), result("x", "get_weather", ""), result("r", "calculate", "c")},
			want:     "u",
			orphaned: 3,
		},
		{
			name: "result without call id pairs by name",
			in:   []memory.Entry{call("c", "calculate"), result("r", "calculate", "")},
			want: "c,r",
		},
		{
			name:     "second result for the same call dropped",
			in:       []memory.Entry{call("c", "calculate"), result("r1", "calculate", "c"), result("r2", "calculate", "c")},
			want:     "c,r1",
			orphaned: 1,
		},
		{
			name: "invalid entries skipped before pairing",
			in: []memory.Entry{
				user("u", "hi"),
				{ID: "bad-user", Message: memory.Message{Role: memory.RoleUser}},
				{ID: "bad-role", Message: memory.Message{Role: "assistant", Parts: []memory.Part{{Text: "x"}}}},
				call("c", "calculate"),
				{ID: "bad-fn", Message: memory.Message{Role: memory.RoleFunction, Parts: []memory.Part{{Text: "no response"}}}},
				result("r", "calculate", "c"),
			},
			want:    "u,c,r",
			invalid: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stats := memory.Repair(tt.in)
			if ids(got) != tt.want {
				t.Fatalf("kept: got [%s] want [%s]", ids(got), tt.want)
			}
			if stats.Orphaned != tt.orphaned || stats.Invalid != tt.invalid {
				t.Fatalf("stats: got %+v want orphaned=%d invalid=%d", stats, tt.orphaned, tt.invalid)
			}
			assertPaired(t, got)
		})
	}
}

func TestRepair_IsIdempotent(t *testing.T) {
	in := []memory.Entry{
		user("u", "hi"), call("a", "x"), call("b", "y"), result("r", "y", "b"),
		result("z", "y", ""), text("m", "done"), call("t", "x"),
	}
	once, _ := memory.Repair(in)
	twice, stats := memory.Repair(once)
	if ids(once) != ids(twice) {
		t.Fatalf("repair not idempotent: %s vs %s", ids(once), ids(twice))
	}
	if stats.Dropped() != 0 {
		t.Fatalf("second pass dropped entries: %+v", stats)
	}
}

// assertPaired checks the invariant directly on a repaired sequence.
func assertPaired(t *testing.T, es []memory.Entry) {
	t.Helper()
	for i, e := range es {
		if e.IsCall() {
			if i+1 >= len(es) || es[i+1].Role != memory.RoleFunction {
				t.Fatalf("call %s at %d not followed by a function entry", e.ID, i)
			}
		}
		if e.Role == memory.RoleFunction {
			if i == 0 || !es[i-1].IsCall() {
				t.Fatalf("function entry %s at %d not preceded by a call", e.ID, i)
			}
		}
	}
}
