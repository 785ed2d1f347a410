package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
)

// Provider names accepted by New.
const (
	NameAnthropic = "anthropic"
	NameGemini    = "gemini"
)

// DefaultMaxTokens caps a single reply.
const DefaultMaxTokens = 1024

// ErrEmptyReply is returned when the model answers with neither text nor a call.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Request is one model invocation: the repaired history plus the tool catalog.
type Request struct {
	System  string
	History []memory.Message
	Tools   []tools.Declaration
}

// Gateway turns a history into exactly one model message. The reply carries
// either a single text part or one or more function calls.
type Gateway interface {
	Name() string
	Generate(ctx context.Context, req Request) (memory.Message, error)
}

// GatewayError wraps every failure a Gateway reports.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Settings selects and configures a Gateway.
type Settings struct {
	Provider   string
	Model      string
	MaxTokens  int64
	APIKey     string
	HTTPClient *http.Client
}

// New builds the Gateway named by s.Provider. An empty name means Anthropic.
func New(ctx context.Context, s Settings) (Gateway, error) {
	switch s.Provider {
	case "", NameAnthropic:
		return NewAnthropic(s), nil
	case NameGemini:
		return NewGemini(ctx, s)
	default:
		return nil, fmt.Errorf("unknown provider %q", s.Provider)
	}
}

var payloadSeq atomic.Int64

// persistPayload writes v under <artifacts>/payloads when payload persistence is on.
// Failures are reported on stderr and otherwise ignored.
func persistPayload(ctx context.Context, provider, kind string, v any) {
	if !telemetry.PersistPayloadsEnabled() {
		return
	}
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = "no-turn"
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider: marshal %s payload: %v\n", kind, err)
		return
	}
	dir := filepath.Join(telemetry.ArtifactsDir(), "payloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "provider: mkdir %s: %v\n", dir, err)
		return
	}
	name := fmt.Sprintf("%s_%s_%03d_%s.json", turnID, provider, payloadSeq.Add(1), kind)
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "provider: write %s: %v\n", name, err)
	}
}
