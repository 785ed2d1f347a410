// Package tools defines the tool catalog the model may call and the registry
// that validates and runs those calls.
//
// Includes:
//   - ToolDefinition: name, description, declared parameters, handler.
//   - NewTool[T](): derive parameters from a Go struct and decode arguments into it.
//   - Registry: lookup, argument coercion, per-call timeout, panic containment.
//   - Local tools (time, maths, text, passwords) and HTTP-backed tools.
//
// Every failure surfaces as a *ToolError so callers can fold it into a
// function response instead of aborting the turn.
package tools
