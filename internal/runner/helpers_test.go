package runner_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/petasbytes/toolchat/internal/provider"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
)

// scriptedGateway returns replies in order and records every request.
// A non-nil errs[i] fails the i-th call instead.
type scriptedGateway struct {
	mu       sync.Mutex
	replies  []memory.Message
	errs     []error
	requests []provider.Request
}

func (g *scriptedGateway) Name() string { return "fake" }

func (g *scriptedGateway) Generate(_ context.Context, req provider.Request) (memory.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := len(g.requests)
	req.History = append([]memory.Message(nil), req.History...)
	g.requests = append(g.requests, req)
	if i < len(g.errs) && g.errs[i] != nil {
		return memory.Message{}, g.errs[i]
	}
	if i >= len(g.replies) {
		return memory.Message{}, errors.New("unexpected gateway call")
	}
	return g.replies[i], nil
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// flakyStore fails the failAt-th Append (1-based).
type flakyStore struct {
	*memory.MemoryStore
	failAt  int
	appends int
}

func (s *flakyStore) Append(ctx context.Context, recs []json.RawMessage) error {
	s.appends++
	if s.appends == s.failAt {
		return errors.New("disk full")
	}
	return s.MemoryStore.Append(ctx, recs)
}

type noInput struct{}

type echoInput struct {
	Secret string `json:"secret" jsonschema_description:"Value to echo."`
}

// testTools is the local catalog plus tools with scripted behaviour.
func testTools(t *testing.T) *tools.Registry {
	t.Helper()
	defs := append(tools.LocalTools(),
		tools.NewTool("explode", "Always fails", func(context.Context, noInput) (string, error) {
			return "", errors.New("boom")
		}),
		tools.NewTool("echo", "Echoes its input", func(_ context.Context, in echoInput) (string, error) {
			return in.Secret, nil
		}),
	)
	return tools.NewRegistry(defs)
}

func call(name string, args map[string]any) memory.Message {
	return memory.ModelCall(memory.FunctionCall{Name: name, Args: args})
}

func load(t *testing.T, lg *memory.Log) []memory.Message {
	t.Helper()
	msgs, err := lg.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return msgs
}

func roles(msgs []memory.Message) []memory.Role {
	out := make([]memory.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

// observe routes telemetry events into a temp dir for the test.
func observe(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", dir)
	return dir
}

func readEvents(t *testing.T, dir string) []map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("open events: %v", err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}
