// ABOUTME: Error types for the agent runtime: invariant violations and tool execution failures.
// ABOUTME: Model errors from the llm package pass through untouched.

package agent

import "fmt"

// InvariantError reports a broken runtime assumption: an unknown tool name,
// an exhausted turn budget, or invalid session configuration.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}

// NewInvariantError creates an InvariantError.
func NewInvariantError(reason string) *InvariantError {
	return &InvariantError{Reason: reason}
}

// ToolExecutionError reports a tool whose Execute returned an error value.
// Recoverable tool failures are expressed as ToolResult{IsError: true}
// instead and never produce this error.
type ToolExecutionError struct {
	ToolName string
	Cause    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.ToolName, e.Cause)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Cause
}

// NewToolExecutionError wraps a tool failure.
func NewToolExecutionError(toolName string, cause error) *ToolExecutionError {
	return &ToolExecutionError{ToolName: toolName, Cause: cause}
}
