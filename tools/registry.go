package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single tool call unless WithTimeout overrides it.
const DefaultTimeout = 15 * time.Second

// Parameter is the provider-neutral description of one tool argument.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Declaration is what the model is told about a tool.
type Declaration struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
}

// Registry holds the static tool catalog. It is safe for concurrent use.
type Registry struct {
	defs    []ToolDefinition
	byName  map[string]int
	timeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout sets the per-call deadline. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.timeout = d
	}
}

// NewRegistry indexes defs. It panics on an empty or duplicate name, since the
// catalog is fixed at build time.
func NewRegistry(defs []ToolDefinition, opts ...Option) *Registry {
	r := &Registry{
		defs:    append([]ToolDefinition(nil), defs...),
		byName:  make(map[string]int, len(defs)),
		timeout: DefaultTimeout,
	}
	for i, d := range r.defs {
		if d.Name == "" || d.Function == nil {
			panic(fmt.Sprintf("tools: definition %d is incomplete", i))
		}
		if _, dup := r.byName[d.Name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool %q", d.Name))
		}
		r.byName[d.Name] = i
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns a registry over the full catalog with live HTTP endpoints.
func Default(opts ...Option) *Registry {
	return NewRegistry(Catalog(DefaultWebConfig()), opts...)
}

// Catalog returns every built-in tool, local tools first.
func Catalog(web WebConfig) []ToolDefinition {
	return append(LocalTools(), WebTools(web)...)
}

// Declarations lists the tools in catalog order.
func (r *Registry) Declarations() []Declaration {
	out := make([]Declaration, 0, len(r.defs))
	for _, d := range r.defs {
		params := make([]Parameter, 0, len(d.Params))
		for _, p := range d.Params {
			params = append(params, Parameter(p))
		}
		out = append(out, Declaration{Name: d.Name, Description: d.Description, Parameters: params})
	}
	return out
}

// Has reports whether name is in the catalog.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Invoke runs the named tool with args as received from the model.
//
// Scalars are coerced to strings; objects, arrays and null are rejected, as is
// a missing required argument. Keys the tool does not declare are ignored.
// Every failure is a *ToolError.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	i, ok := r.byName[name]
	if !ok {
		return "", &ToolError{Code: CodeToolNotFound, Message: fmt.Sprintf("tool %q not found", name)}
	}
	def := r.defs[i]

	in, err := coerceArgs(def.Params, args)
	if err != nil {
		return "", err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return run(ctx, def, in)
}

type outcome struct {
	out string
	err error
}

// run executes def in its own goroutine so a tool that ignores ctx cannot
// hold the turn past the deadline.
func run(ctx context.Context, def ToolDefinition, args map[string]string) (string, error) {
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		out, err := def.Function(ctx, args)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return "", asToolError(o.err)
		}
		return o.out, nil
	case <-ctx.Done():
		return "", &ToolError{Code: CodeToolExecution, Message: fmt.Sprintf("tool %q: %v", def.Name, ctx.Err())}
	}
}

func asToolError(err error) error {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	return &ToolError{Code: CodeToolExecution, Message: "tool execution failed: " + err.Error()}
}

func coerceArgs(params []Param, args map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(params))
	for _, p := range params {
		v, ok := args[p.Name]
		if !ok {
			if p.Required {
				return nil, &ToolError{Code: CodeInvalidArguments, Message: fmt.Sprintf("missing required argument %q", p.Name)}
			}
			continue
		}
		s, ok := scalarString(v)
		if !ok {
			return nil, &ToolError{Code: CodeInvalidArguments, Message: fmt.Sprintf("argument %q must be a string, number or boolean, got %T", p.Name, v)}
		}
		out[p.Name] = s
	}
	return out, nil
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}
