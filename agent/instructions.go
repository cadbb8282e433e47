// ABOUTME: Instruction parameters: literal, sync, and async system prompt fragments.
// ABOUTME: Fragments resolve in parallel per request, preserve declaration order, and join with newlines.

package agent

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"
)

// InstructionParam is one system prompt fragment in one of three shapes:
// a literal string, a sync function of the caller context, or an async
// function. Exactly one field should be set.
type InstructionParam[C any] struct {
	Content   string
	Func      func(c C) (string, error)
	AsyncFunc func(ctx context.Context, c C) (string, error)
}

// Instruction creates a literal instruction fragment.
func Instruction[C any](content string) InstructionParam[C] {
	return InstructionParam[C]{Content: content}
}

// InstructionFunc creates a fragment computed synchronously per request.
func InstructionFunc[C any](fn func(c C) (string, error)) InstructionParam[C] {
	return InstructionParam[C]{Func: fn}
}

// InstructionAsyncFunc creates a fragment computed asynchronously per request.
func InstructionAsyncFunc[C any](fn func(ctx context.Context, c C) (string, error)) InstructionParam[C] {
	return InstructionParam[C]{AsyncFunc: fn}
}

// resolve evaluates one fragment against the caller context.
func (p InstructionParam[C]) resolve(ctx context.Context, c C) (string, error) {
	switch {
	case p.Func != nil:
		return p.Func(c)
	case p.AsyncFunc != nil:
		return p.AsyncFunc(ctx, c)
	}
	return p.Content, nil
}

// resolveInstructions evaluates all fragments in parallel, preserving
// declaration order, and joins the results with "\n". Any fragment failure
// aborts resolution with its error.
func resolveInstructions[C any](ctx context.Context, params []InstructionParam[C], c C) (string, error) {
	if len(params) == 0 {
		return "", nil
	}

	resolved := make([]string, len(params))
	g, ctx := errgroup.WithContext(ctx)
	for i, param := range params {
		g.Go(func() error {
			s, err := param.resolve(ctx, c)
			if err != nil {
				return err
			}
			resolved[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return strings.Join(resolved, "\n"), nil
}
