package runner_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/petasbytes/toolchat/internal/runner"
	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/petasbytes/toolchat/memory"
)

func lastEvent(events []map[string]any, name string) map[string]any {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i]["event"] == name {
			return events[i]
		}
	}
	return nil
}

func TestRunner_ToolExec_JSONL_Success(t *testing.T) {
	dir := observe(t)
	gw := &scriptedGateway{replies: []memory.Message{
		call("calculate", map[string]any{"expression": "6*7"}),
		memory.ModelText("42"),
	}}
	r := runner.New(gw, testTools(t), memory.Open(memory.NewMemoryStore()))

	if _, err := r.RunTurn(context.Background(), "6*7"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	exec := lastEvent(readEvents(t, dir), "tool_exec")
	if exec == nil {
		t.Fatal("no tool_exec event found")
	}
	if exec["tool_name"] != "calculate" {
		t.Errorf("tool_name: want calculate, got %v", exec["tool_name"])
	}
	if v, ok := exec["duration_ms"].(float64); !ok || v < 0 {
		t.Errorf("duration_ms should be >= 0, got %v", exec["duration_ms"])
	}
	if v, ok := exec["input_size"].(float64); !ok || v <= 0 {
		t.Errorf("input_size should be > 0, got %v", exec["input_size"])
	}
	if v, ok := exec["output_size"].(float64); !ok || v <= 0 {
		t.Errorf("output_size should be > 0, got %v", exec["output_size"])
	}
	if _, ok := exec["error"]; !ok {
		t.Errorf("missing error field")
	} else if exec["error"] != nil {
		t.Errorf("error should be null on success, got %v", exec["error"])
	}
}

func TestRunner_ToolExec_JSONL_Error(t *testing.T) {
	dir := observe(t)
	gw := &scriptedGateway{replies: []memory.Message{call("explode", nil), memory.ModelText("oops")}}
	r := runner.New(gw, testTools(t), memory.Open(memory.NewMemoryStore()))

	if _, err := r.RunTurn(context.Background(), "explode"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	exec := lastEvent(readEvents(t, dir), "tool_exec")
	if exec == nil {
		t.Fatal("no tool_exec event found")
	}
	if exec["error"] != "tool error" {
		t.Errorf("error should be the generic string, got %v", exec["error"])
	}
	if exec["output_size"] != float64(0) {
		t.Errorf("output_size should be 0 on error, got %v", exec["output_size"])
	}
}

func TestRunner_Events_CarryTurnID(t *testing.T) {
	dir := observe(t)
	gw := &scriptedGateway{replies: []memory.Message{
		call("get_current_time", nil),
		memory.ModelText("now"),
	}}
	r := runner.New(gw, testTools(t), memory.Open(memory.NewMemoryStore()), runner.WithTokenBudget(1000))

	ctx := telemetry.WithTurnID(context.Background(), "turn-xyz")
	res, err := r.RunTurn(ctx, "time?")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.TurnID != "turn-xyz" {
		t.Fatalf("result turn id = %q", res.TurnID)
	}

	events := readEvents(t, dir)
	for _, name := range []string{"window_prepared", "tool_exec", "turn_state"} {
		e := lastEvent(events, name)
		if e == nil {
			t.Fatalf("missing %s event", name)
		}
		if e["turn_id"] != "turn-xyz" {
			t.Errorf("%s turn_id = %v", name, e["turn_id"])
		}
	}

	var states []string
	for _, e := range events {
		if e["event"] == "turn_state" {
			states = append(states, e["to"].(string))
		}
	}
	want := "AWAITING_FIRST_REPLY,AWAITING_TOOL,AWAITING_FINAL_REPLY,DONE"
	if got := strings.Join(states, ","); got != want {
		t.Fatalf("turn_state sequence = %s, want %s", got, want)
	}
}

func TestRunner_ToolExec_Privacy_NoRawPayloadLeak(t *testing.T) {
	dir := observe(t)
	secret := "__SECRET_NEVER_APPEAR__"
	gw := &scriptedGateway{replies: []memory.Message{
		call("echo", map[string]any{"secret": secret}),
		memory.ModelText("done"),
	}}
	r := runner.New(gw, testTools(t), memory.Open(memory.NewMemoryStore()))

	if _, err := r.RunTurn(context.Background(), "echo it"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events := readEvents(t, dir)
	if len(events) == 0 {
		t.Fatal("expected events")
	}
	for _, e := range events {
		b, _ := json.Marshal(e)
		if strings.Contains(string(b), secret) {
			t.Fatalf("raw payload leaked into telemetry: %s", b)
		}
	}
}
