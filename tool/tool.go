// Package tool implements the function / tool calling subsystem that lets the
// model invoke structured capabilities (lookups, computations, side-effects)
// with schema validated arguments, consistent error handling and rich metadata
// for model guidance.
package tool

import (
	"errors"
	"fmt"

	"github.com/turnloop/turnloop/core"
)

// Registration errors are configuration errors: they surface at startup, never
// mid-turn.
var (
	// ErrDuplicateTool is returned when registering a tool whose name is taken.
	ErrDuplicateTool = errors.New("duplicate tool name")
	// ErrUnknownTool is returned when resolving a name with no registered tool.
	ErrUnknownTool = errors.New("unknown tool")
)

// Tool defines a named, schema-described capability the model may request to
// be invoked mid-turn.
//
// Implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be safe for concurrent use (several calls may run within one dispatch)
//   - Be idempotent for identical arguments within a turn when feasible
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the model to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with parsed arguments and a ToolContext giving
	// access to the per-call cancellation context and the caller Context.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes attached to ToolError for categorization. Tools returning a
// *ToolError directly may use custom codes; these cover the built-in cases.
const (
	// CodeValidationError marks a schema / argument mismatch.
	CodeValidationError = "VALIDATION_ERROR"
	// CodeExecutionError marks a failure inside the tool implementation.
	CodeExecutionError = "EXECUTION_ERROR"
	// CodeTimeout marks a tool call that exceeded its execution deadline.
	CodeTimeout = "TIMEOUT"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
