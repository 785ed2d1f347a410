package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser     Role = "user"
	RoleModel    Role = "model"
	RoleFunction Role = "function"
)

// Keys used in a FunctionResponse payload.
const (
	ResultKey = "result"
	ErrorKey  = "error"
)

// FunctionCall is a model request to run a named tool.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries a tool outcome back to the model.
type FunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// IsError reports whether the payload describes a failed tool call.
func (r FunctionResponse) IsError() bool {
	_, ok := r.Response[ErrorKey]
	return ok
}

// Content returns the result or error string carried by the payload.
func (r FunctionResponse) Content() string {
	for _, k := range []string{ErrorKey, ResultKey} {
		if v, ok := r.Response[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// Part is one element of a message. Exactly one field is set.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

type partKind int

const (
	partInvalid partKind = iota
	partText
	partCall
	partResponse
)

func (p Part) kind() partKind {
	set := 0
	k := partInvalid
	if p.Text != "" {
		set++
		k = partText
	}
	if p.FunctionCall != nil {
		set++
		k = partCall
		if p.FunctionCall.Name == "" {
			return partInvalid
		}
	}
	if p.FunctionResponse != nil {
		set++
		k = partResponse
		if p.FunctionResponse.Name == "" {
			return partInvalid
		}
	}
	if set != 1 {
		return partInvalid
	}
	return k
}

// Message is the protocol-facing view of one conversation entry.
// It deliberately has no id or timestamp; see Entry.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// UserText builds a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// ModelText builds a model reply carrying text.
func ModelText(text string) Message {
	return Message{Role: RoleModel, Parts: []Part{{Text: text}}}
}

// ModelCall builds a model reply requesting one or more tool calls.
func ModelCall(calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls))
	for i := range calls {
		c := calls[i]
		parts = append(parts, Part{FunctionCall: &c})
	}
	return Message{Role: RoleModel, Parts: parts}
}

// FunctionResult builds a function message for a successful tool call.
func FunctionResult(name, result string) Message {
	return functionMessage(name, map[string]any{ResultKey: result})
}

// FunctionError builds a function message describing a failed tool call.
func FunctionError(name, reason string) Message {
	return functionMessage(name, map[string]any{ErrorKey: reason})
}

func functionMessage(name string, payload map[string]any) Message {
	return Message{Role: RoleFunction, Parts: []Part{{
		FunctionResponse: &FunctionResponse{Name: name, Response: payload},
	}}}
}

// Text joins the text parts of m.
func (m Message) Text() string {
	var parts []string
	for _, p := range m.Parts {
		if p.kind() == partText {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Calls returns the function calls requested by m, in order.
func (m Message) Calls() []FunctionCall {
	var out []FunctionCall
	for _, p := range m.Parts {
		if p.kind() == partCall {
			out = append(out, *p.FunctionCall)
		}
	}
	return out
}

// IsCall reports whether m is a model message requesting tools.
func (m Message) IsCall() bool {
	return m.Role == RoleModel && len(m.Calls()) > 0
}

// Response returns the function response carried by m, if any.
func (m Message) Response() *FunctionResponse {
	for _, p := range m.Parts {
		if p.kind() == partResponse {
			return p.FunctionResponse
		}
	}
	return nil
}

// ErrInvalidMessage is returned when a message breaks the per-role shape rules.
var ErrInvalidMessage = errors.New("invalid message")

// Validate enforces the strict shape each role must have when it is written:
//   - user: exactly one text part
//   - model: exactly one text part, or one or more functionCall parts (never mixed)
//   - function: exactly one functionResponse part
func (m Message) Validate() error {
	kinds := make([]partKind, len(m.Parts))
	for i, p := range m.Parts {
		kinds[i] = p.kind()
		if kinds[i] == partInvalid {
			return fmt.Errorf("%w: part %d is empty or ambiguous", ErrInvalidMessage, i)
		}
	}
	switch m.Role {
	case RoleUser:
		if len(kinds) != 1 || kinds[0] != partText {
			return fmt.Errorf("%w: user message needs exactly one text part", ErrInvalidMessage)
		}
	case RoleModel:
		if len(kinds) == 0 {
			return fmt.Errorf("%w: model message has no parts", ErrInvalidMessage)
		}
		if kinds[0] == partText {
			if len(kinds) != 1 {
				return fmt.Errorf("%w: model text reply must be a single part", ErrInvalidMessage)
			}
			return nil
		}
		for _, k := range kinds {
			if k != partCall {
				return fmt.Errorf("%w: model message mixes calls with other parts", ErrInvalidMessage)
			}
		}
	case RoleFunction:
		if len(kinds) != 1 || kinds[0] != partResponse {
			return fmt.Errorf("%w: function message needs exactly one functionResponse part", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, m.Role)
	}
	return nil
}

// sane is the lenient load-time shape check: the role must carry at least one
// part of the kind it exists to carry.
func (m Message) sane() bool {
	want := map[Role]func(partKind) bool{
		RoleUser:     func(k partKind) bool { return k == partText },
		RoleModel:    func(k partKind) bool { return k == partText || k == partCall },
		RoleFunction: func(k partKind) bool { return k == partResponse },
	}[m.Role]
	if want == nil {
		return false
	}
	for _, p := range m.Parts {
		if want(p.kind()) {
			return true
		}
	}
	return false
}
