package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
)

// NewAnthropicClient returns a client using API key from the env.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

// notExecuted answers calls the runner did not act on, so every tool_use
// still has a tool_result.
const notExecuted = "not executed: only the first call of a reply is run"

// Anthropic is the Messages API gateway.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic builds the gateway. Extra request options are passed to the client.
func NewAnthropic(s Settings, opts ...option.RequestOption) *Anthropic {
	if s.APIKey != "" {
		opts = append(opts, option.WithAPIKey(s.APIKey))
	}
	if s.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTPClient))
	}
	a := &Anthropic{
		client:    NewAnthropicClient(opts...),
		model:     anthropic.Model(s.Model),
		maxTokens: s.MaxTokens,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	return a
}

func (a *Anthropic) Name() string { return NameAnthropic }

// Generate sends req to the Messages API.
func (a *Anthropic) Generate(ctx context.Context, req Request) (memory.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  anthropicMessages(req.History),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicTools(req.Tools)
	}
	persistPayload(ctx, NameAnthropic, "request", params)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return memory.Message{}, &GatewayError{Provider: NameAnthropic, Err: err}
	}
	persistPayload(ctx, NameAnthropic, "response", msg)

	out, err := fromAnthropic(msg)
	if err != nil {
		return memory.Message{}, &GatewayError{Provider: NameAnthropic, Err: err}
	}
	return out, nil
}

func anthropicTools(decls []tools.Declaration) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(decls))
	for _, d := range decls {
		props := make(map[string]any, len(d.Parameters))
		var required []string
		for _, p := range d.Parameters {
			props[p.Name] = map[string]any{"type": "string", "description": p.Description}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		}})
	}
	return out
}

// callID names the j-th call of the i-th history message. Ids only need to be
// unique and stable within one request.
func callID(i, j int) string {
	return fmt.Sprintf("call_%d_%d", i, j)
}

// anthropicMessages converts history. Function messages become a user turn of
// tool_result blocks, one per call of the preceding model message.
func anthropicMessages(history []memory.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for i, m := range history {
		switch m.Role {
		case memory.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		case memory.RoleModel:
			if calls := m.Calls(); len(calls) > 0 {
				blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
				for j, c := range calls {
					args := c.Args
					if args == nil {
						args = map[string]any{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(callID(i, j), args, c.Name))
				}
				out = append(out, anthropic.NewAssistantMessage(blocks...))
				continue
			}
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text())))
		case memory.RoleFunction:
			resp := m.Response()
			if resp == nil || i == 0 || !history[i-1].IsCall() {
				continue
			}
			out = append(out, anthropic.NewUserMessage(toolResults(i-1, history[i-1].Calls(), resp)...))
		}
	}
	return out
}

func toolResults(callIdx int, calls []memory.FunctionCall, resp *memory.FunctionResponse) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
	answered := false
	for j, c := range calls {
		if !answered && c.Name == resp.Name {
			answered = true
			blocks = append(blocks, anthropic.NewToolResultBlock(callID(callIdx, j), resp.Content(), resp.IsError()))
			continue
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(callID(callIdx, j), notExecuted, true))
	}
	return blocks
}

func fromAnthropic(msg *anthropic.Message) (memory.Message, error) {
	var (
		texts []string
		calls []memory.FunctionCall
	)
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if strings.TrimSpace(v.Text) != "" {
				texts = append(texts, v.Text)
			}
		case anthropic.ToolUseBlock:
			var args map[string]any
			if raw := v.JSON.Input.Raw(); raw != "" && raw != "null" {
				if err := json.Unmarshal([]byte(raw), &args); err != nil {
					return memory.Message{}, fmt.Errorf("decode input of tool %q: %w", v.Name, err)
				}
			}
			calls = append(calls, memory.FunctionCall{Name: v.Name, Args: args})
		}
	}
	if len(calls) > 0 {
		return memory.ModelCall(calls...), nil
	}
	if len(texts) == 0 {
		return memory.Message{}, ErrEmptyReply
	}
	return memory.ModelText(strings.Join(texts, "\n")), nil
}
