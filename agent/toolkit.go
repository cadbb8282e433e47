// ABOUTME: Toolkit abstraction for dynamically discovered tools and prompt fragments.
// ABOUTME: A Toolkit opens a per-context ToolkitSession owned exclusively by one run session.

package agent

import "context"

// Toolkit produces tools whose availability depends on the caller context,
// such as MCP servers the caller has authorized.
type Toolkit[C any] interface {
	// CreateSession resolves the toolkit for one caller context. The session
	// is owned by the run session that created it and closed with it.
	CreateSession(ctx context.Context, c C) (ToolkitSession[C], error)
}

// ToolkitSession is a resolved toolkit bound to one run session.
type ToolkitSession[C any] interface {
	// SystemPrompt returns an extra prompt fragment, or "" for none. It is
	// appended after the agent's resolved instructions.
	SystemPrompt() string

	// Tools returns the tools this session contributes.
	Tools() []Tool[C]

	// Close releases the session's resources. Idempotent.
	Close() error
}

// StaticToolkit is a Toolkit with a fixed prompt and tool list, independent
// of the caller context.
type StaticToolkit[C any] struct {
	Prompt   string
	ToolList []Tool[C]
}

// NewStaticToolkit creates a Toolkit that always yields the given tools.
func NewStaticToolkit[C any](prompt string, tools ...Tool[C]) *StaticToolkit[C] {
	return &StaticToolkit[C]{Prompt: prompt, ToolList: tools}
}

func (t *StaticToolkit[C]) CreateSession(ctx context.Context, c C) (ToolkitSession[C], error) {
	return &staticToolkitSession[C]{toolkit: t}, nil
}

type staticToolkitSession[C any] struct {
	toolkit *StaticToolkit[C]
}

func (s *staticToolkitSession[C]) SystemPrompt() string { return s.toolkit.Prompt }
func (s *staticToolkitSession[C]) Tools() []Tool[C]     { return s.toolkit.ToolList }
func (s *staticToolkitSession[C]) Close() error         { return nil }
