// ABOUTME: Tests for instruction resolution: all three fragment shapes, ordering, and failure.
// ABOUTME: Also covers system prompt assembly with toolkit-contributed fragments.

package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harborai/loom/llm"
)

type userCtx struct {
	Name string
}

func TestResolveInstructionsAllShapes(t *testing.T) {
	params := []InstructionParam[userCtx]{
		Instruction[userCtx]("You are a helpful assistant."),
		InstructionFunc(func(c userCtx) (string, error) {
			return "The user is " + c.Name + ".", nil
		}),
		InstructionAsyncFunc(func(ctx context.Context, c userCtx) (string, error) {
			return "Answer briefly.", nil
		}),
	}

	got, err := resolveInstructions(context.Background(), params, userCtx{Name: "Ada"})
	if err != nil {
		t.Fatalf("resolveInstructions() error: %v", err)
	}
	want := "You are a helpful assistant.\nThe user is Ada.\nAnswer briefly."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveInstructionsPreservesOrder(t *testing.T) {
	// The slow fragment comes first; parallel resolution must not reorder.
	params := []InstructionParam[struct{}]{
		InstructionAsyncFunc(func(ctx context.Context, _ struct{}) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return "first", nil
		}),
		Instruction[struct{}]("second"),
	}
	got, err := resolveInstructions(context.Background(), params, struct{}{})
	if err != nil {
		t.Fatalf("resolveInstructions() error: %v", err)
	}
	if got != "first\nsecond" {
		t.Errorf("got %q, want first\\nsecond", got)
	}
}

func TestResolveInstructionsFailure(t *testing.T) {
	boom := errors.New("lookup failed")
	params := []InstructionParam[struct{}]{
		Instruction[struct{}]("ok"),
		InstructionFunc(func(struct{}) (string, error) { return "", boom }),
	}
	_, err := resolveInstructions(context.Background(), params, struct{}{})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want resolver error", err)
	}
}

func TestResolveInstructionsEmpty(t *testing.T) {
	got, err := resolveInstructions[struct{}](context.Background(), nil, struct{}{})
	if err != nil {
		t.Fatalf("resolveInstructions() error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSessionSystemPromptIncludesToolkitFragments(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("ok")}}
	toolkit := NewStaticToolkit[struct{}]("Toolkit guidance.")

	a := New("assistant", llm.LanguageModel(model),
		WithInstructions(Instruction[struct{}]("Base instructions.")),
		WithToolkits[struct{}](toolkit))

	if _, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("hi")}}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := model.inputs[0].SystemPrompt
	want := "Base instructions.\nToolkit guidance."
	if got != want {
		t.Errorf("got system prompt %q, want %q", got, want)
	}
}
