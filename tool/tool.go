// Package tool implements the function calling subsystem that lets agents
// invoke structured capabilities with schema validated arguments, consistent
// error codes and an observability hook around every call.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tools are registered in a Catalog which the agent advertises to the model
// and dispatches function calls through. Handlers receive a ToolContext that
// exposes the shared ProverbStore and collects the state delta published
// with the function response.
//
// Tool implementations should:
//   - Provide clear, descriptive snake_case names
//   - Define a proper JSON schema for parameters
//   - Stay free of logging and metrics; the Catalog hooks cover those
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the LLM to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// Error codes carried by ToolError.
const (
	CodeInvalidInput   = "INVALID_INPUT"
	CodeExecutionError = "EXECUTION_ERROR"
	CodeNotFound       = "NOT_FOUND"
)

var (
	// ErrInvalidInput matches any ToolError with CodeInvalidInput.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound matches any ToolError with CodeNotFound.
	ErrNotFound = errors.New("tool not found")
	// ErrExecution matches any ToolError with CodeExecutionError.
	ErrExecution = errors.New("tool execution failed")
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

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

// Is lets errors.Is match a ToolError against the code sentinels.
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Code == CodeInvalidInput
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrExecution:
		return e.Code == CodeExecutionError
	}
	return false
}

// Unwrap exposes an error stored in Details.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// InvalidInput builds an INVALID_INPUT error for tool.
func InvalidInput(tool, format string, args ...any) *ToolError {
	return NewToolError(tool, fmt.Sprintf(format, args...), CodeInvalidInput)
}

// Code returns the ToolError code of err, or "" for nil and foreign errors.
func Code(err error) string {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	if err != nil {
		return CodeExecutionError
	}
	return ""
}
