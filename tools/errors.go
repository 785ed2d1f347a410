package tools

import "encoding/json"

// Tool error codes.
const (
	CodeToolNotFound     = "ERR_TOOL_NOT_FOUND"
	CodeInvalidArguments = "ERR_INVALID_ARGUMENTS"
	CodeToolExecution    = "ERR_TOOL_EXECUTION"
)

// Sentinels for errors.Is. Matching compares codes only.
var (
	ErrToolNotFound     = &ToolError{Code: CodeToolNotFound}
	ErrInvalidArguments = &ToolError{Code: CodeInvalidArguments}
	ErrToolExecution    = &ToolError{Code: CodeToolExecution}
)

// ToolError is a machine-readable error body for surfacing back to the model as JSON.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error returns a compact, single-line JSON string to keep function payloads small.
func (e ToolError) Error() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Is reports whether target is a ToolError with the same code.
func (e *ToolError) Is(target error) bool {
	t, ok := target.(*ToolError)
	return ok && t.Code == e.Code
}
