// ABOUTME: Tool contract for the agent runtime: the Tool interface, FuncTool adapter, and RunState.
// ABOUTME: Tools are generic over the caller context type C threaded through every execution.

package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"

	"github.com/harborai/loom/llm"
)

// toolNameRe is the allowed shape of a tool name.
var toolNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ToolResult is what a tool hands back to the model. IsError marks a
// recoverable failure: the run continues and the model sees the content.
type ToolResult struct {
	Content []llm.Part `json:"content"`
	IsError bool       `json:"is_error,omitempty"`
}

// TextResult creates a successful ToolResult holding one text part.
func TextResult(text string) ToolResult {
	return ToolResult{Content: []llm.Part{llm.NewTextPart(text)}}
}

// ErrorResult creates a recoverable error ToolResult holding one text part.
func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []llm.Part{llm.NewTextPart(text)}, IsError: true}
}

// JSONResult creates a successful ToolResult from a JSON-marshalable value.
func JSONResult(v any) (ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ToolResult{}, err
	}
	return TextResult(string(data)), nil
}

// RunState is a keyed scratch store shared by all tool executions within a
// single run. Safe for concurrent use.
type RunState struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewRunState creates an empty RunState.
func NewRunState() *RunState {
	return &RunState{values: make(map[string]any)}
}

// Get returns the value stored under key, if any.
func (s *RunState) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key.
func (s *RunState) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes a key.
func (s *RunState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Tool is a callable capability offered to the model. C is the caller
// context type threaded through Execute unchanged.
type Tool[C any] interface {
	// Name returns the tool identifier. Must match [A-Za-z_][A-Za-z0-9_]*.
	Name() string

	// Description explains the tool to the model.
	Description() string

	// Parameters returns the JSON schema of the argument object. The root
	// must declare "type": "object".
	Parameters() map[string]any

	// Execute runs the tool. Returning an error fails the run; returning a
	// ToolResult with IsError set continues it.
	Execute(ctx context.Context, args json.RawMessage, c C, state *RunState) (ToolResult, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool[C any] struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args json.RawMessage, c C, state *RunState) (ToolResult, error)
}

// NewFuncTool creates a Tool from a function.
func NewFuncTool[C any](
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args json.RawMessage, c C, state *RunState) (ToolResult, error),
) *FuncTool[C] {
	return &FuncTool[C]{name: name, description: description, parameters: parameters, fn: fn}
}

func (t *FuncTool[C]) Name() string               { return t.name }
func (t *FuncTool[C]) Description() string        { return t.description }
func (t *FuncTool[C]) Parameters() map[string]any { return t.parameters }

func (t *FuncTool[C]) Execute(ctx context.Context, args json.RawMessage, c C, state *RunState) (ToolResult, error) {
	return t.fn(ctx, args, c, state)
}
