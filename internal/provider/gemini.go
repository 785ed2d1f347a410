package provider

import (
	"context"
	"os"
	"strings"

	"github.com/petasbytes/toolchat/memory"
	"github.com/petasbytes/toolchat/tools"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini is the generateContent gateway.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// NewGemini builds the gateway. The key falls back to GEMINI_API_KEY, then GOOGLE_API_KEY.
func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	key := s.APIKey
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key != "" {
			break
		}
		key = os.Getenv(env)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: s.HTTPClient,
	})
	if err != nil {
		return nil, &GatewayError{Provider: NameGemini, Err: err}
	}
	g := &Gemini{client: client, model: s.Model, maxTokens: int32(s.MaxTokens)}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	return g, nil
}

func (g *Gemini) Name() string { return NameGemini }

// Generate sends req to the generateContent endpoint.
func (g *Gemini) Generate(ctx context.Context, req Request) (memory.Message, error) {
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}
	contents := geminiContents(req.History)
	persistPayload(ctx, NameGemini, "request", map[string]any{"contents": contents, "config": cfg})

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return memory.Message{}, &GatewayError{Provider: NameGemini, Err: err}
	}
	persistPayload(ctx, NameGemini, "response", resp)

	out, err := fromGemini(resp)
	if err != nil {
		return memory.Message{}, &GatewayError{Provider: NameGemini, Err: err}
	}
	return out, nil
}

func geminiDeclarations(decls []tools.Declaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		fd := &genai.FunctionDeclaration{Name: d.Name, Description: d.Description}
		if len(d.Parameters) > 0 {
			schema := &genai.Schema{
				Type:       genai.TypeObject,
				Properties: make(map[string]*genai.Schema, len(d.Parameters)),
			}
			for _, p := range d.Parameters {
				schema.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
				if p.Required {
					schema.Required = append(schema.Required, p.Name)
				}
			}
			fd.Parameters = schema
		}
		out = append(out, fd)
	}
	return out
}

// geminiContents converts history. Function messages travel as user content
// with one functionResponse per call of the preceding model message.
func geminiContents(history []memory.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for i, m := range history {
		switch m.Role {
		case memory.RoleUser:
			out = append(out, genai.NewContentFromText(m.Text(), genai.RoleUser))
		case memory.RoleModel:
			if calls := m.Calls(); len(calls) > 0 {
				parts := make([]*genai.Part, 0, len(calls))
				for _, c := range calls {
					parts = append(parts, genai.NewPartFromFunctionCall(c.Name, c.Args))
				}
				out = append(out, genai.NewContentFromParts(parts, genai.RoleModel))
				continue
			}
			out = append(out, genai.NewContentFromText(m.Text(), genai.RoleModel))
		case memory.RoleFunction:
			resp := m.Response()
			if resp == nil || i == 0 || !history[i-1].IsCall() {
				continue
			}
			parts := make([]*genai.Part, 0, 1)
			answered := false
			for _, c := range history[i-1].Calls() {
				if !answered && c.Name == resp.Name {
					answered = true
					parts = append(parts, genai.NewPartFromFunctionResponse(resp.Name, resp.Response))
					continue
				}
				parts = append(parts, genai.NewPartFromFunctionResponse(c.Name, map[string]any{memory.ErrorKey: notExecuted}))
			}
			out = append(out, genai.NewContentFromParts(parts, genai.RoleUser))
		}
	}
	return out
}

func fromGemini(resp *genai.GenerateContentResponse) (memory.Message, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return memory.Message{}, ErrEmptyReply
	}
	var (
		texts []string
		calls []memory.FunctionCall
	)
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		if p.FunctionCall != nil {
			calls = append(calls, memory.FunctionCall{Name: p.FunctionCall.Name, Args: p.FunctionCall.Args})
			continue
		}
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
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
