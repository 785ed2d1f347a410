package tools

import (
	"context"
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Param describes one declared tool argument. All arguments are strings on the wire.
type Param struct {
	Name        string
	Description string
	Required    bool
}

// ToolDefinition is a named capability the model may request.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []Param
	Function    func(ctx context.Context, args map[string]string) (string, error)
}

// NewTool builds a definition whose parameters are derived from T's json and
// jsonschema_description tags. Fields without omitempty are required.
// Arguments are decoded into a fresh T before fn runs.
func NewTool[T any](name, description string, fn func(context.Context, T) (string, error)) ToolDefinition {
	return ToolDefinition{
		Name:        name,
		Description: description,
		Params:      paramsFor[T](),
		Function: func(ctx context.Context, args map[string]string) (string, error) {
			var in T
			if err := decodeArgs(args, &in); err != nil {
				return "", &ToolError{Code: CodeInvalidArguments, Message: err.Error()}
			}
			return fn(ctx, in)
		},
	}
}

// paramsFor reflects T once into a flat, ordered parameter list.
func paramsFor[T any]() []Param {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	if schema.Properties == nil {
		return nil
	}

	var out []Param
	for p := schema.Properties.Oldest(); p != nil; p = p.Next() {
		out = append(out, Param{
			Name:        p.Key,
			Description: p.Value.Description,
			Required:    slices.Contains(schema.Required, p.Key),
		})
	}
	return out
}

func decodeArgs(args map[string]string, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
