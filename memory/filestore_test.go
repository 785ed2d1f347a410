package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/petasbytes/toolchat/memory"
)

func TestFileStore_RoundTripThroughLog(t *testing.T) {
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "db.json")

	s, err := memory.NewFileStore(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	lg := memory.Open(s)
	in := []memory.Message{memory.UserText("hi"), memory.ModelText("hello")}
	if _, err := lg.Append(ctx, in...); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A second store on the same path sees the durable state.
	s2, _ := memory.NewFileStore(p)
	out, err := memory.Open(s2).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].Role != in[i].Role || out[i].Text() != in[i].Text() {
			t.Fatalf("mismatch at %d: got %+v want %+v", i, out[i], in[i])
		}
	}
}

func TestFileStore_LoadMissing_ReturnsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "does-not-exist.json")

	s, err := memory.NewFileStore(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	recs, err := s.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records for missing file, got %d", len(recs))
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("reading must not create the file")
	}
}

func TestFileStore_LoadInvalidJSON_ReturnsPersistenceError(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(p, []byte("{oops"), 0o664); err != nil {
		t.Fatalf("prep: %v", err)
	}
	s, _ := memory.NewFileStore(p)
	_, err := memory.Open(s).Load(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	var pe *memory.PersistenceError
	if !asPersistence(err, &pe) || pe.Op != "read" {
		t.Fatalf("expected read PersistenceError, got %T %v", err, err)
	}
}

func TestFileStore_ReadsLowdbDocument(t *testing.T) {
	p := filepath.Join(t.TempDir(), "db.json")
	doc := `{
  "messages": [
    {"role":"user","parts":[{"text":"what's 2+2"}],"id":"a","createdAt":"2025-11-01T10:00:00.000Z"},
    {"role":"model","parts":[{"functionCall":{"name":"calculate","args":{"expression":"2+2"}}}],"id":"b","createdAt":"2025-11-01T10:00:01.000Z"},
    {"role":"function","parts":[{"functionResponse":{"name":"calculate","response":{"result":"2+2 = 4"}}}],"id":"c","createdAt":"2025-11-01T10:00:02.000Z"},
    {"role":"model","parts":[{"text":"It's 4."}],"id":"d","createdAt":"2025-11-01T10:00:03.000Z"}
  ]
}`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}
	s, _ := memory.NewFileStore(p)
	msgs, err := memory.Open(s).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if got := msgs[2].Response().Content(); got != "2+2 = 4" {
		t.Fatalf("function response: got %q", got)
	}
}

func TestFileStore_LegacyArrayDropsTextOnlyRecords(t *testing.T) {
	// The old transcript format stored {role,text}; those records have no parts
	// and are discarded by sanitization rather than failing the load.
	p := filepath.Join(t.TempDir(), "conversation.json")
	if err := os.WriteFile(p, []byte(`[{"role":"user","text":"hi"},{"role":"assistant","text":"hello"}]`), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}
	s, _ := memory.NewFileStore(p)
	msgs, err := memory.Open(s).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected legacy records to be dropped, got %d", len(msgs))
	}
}

func TestFileStore_WritesNoTempLeftovers(t *testing.T) {
	dir := t.TempDir()
	s, _ := memory.NewFileStore(filepath.Join(dir, "db.json"))
	lg := memory.Open(s)
	if _, err := lg.Append(context.Background(), memory.UserText("x")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := lg.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}
