// ABOUTME: Tests for the run session: turn loop, parallel tool dispatch, and tool set validation.
// ABOUTME: Drives a scripted mock model through blocking runs covering the end-to-end scenarios.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/harborai/loom/llm"
)

// mockModel returns scripted responses in order. Stream calls replay the
// scripted response as single-part deltas.
type mockModel struct {
	responses []*llm.ModelResponse
	calls     atomic.Int32
	inputs    []*llm.LanguageModelInput
	err       error
}

func (m *mockModel) Provider() string                 { return "mock" }
func (m *mockModel) ModelID() string                  { return "mock-1" }
func (m *mockModel) Metadata() *llm.LanguageModelMetadata { return nil }

func (m *mockModel) next(input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	n := int(m.calls.Add(1)) - 1
	m.inputs = append(m.inputs, input)
	if n >= len(m.responses) {
		return m.responses[len(m.responses)-1], nil
	}
	return m.responses[n], nil
}

func (m *mockModel) Generate(ctx context.Context, input *llm.LanguageModelInput) (*llm.ModelResponse, error) {
	return m.next(input)
}

func (m *mockModel) Stream(ctx context.Context, input *llm.LanguageModelInput) (<-chan llm.StreamEvent, error) {
	resp, err := m.next(input)
	if err != nil {
		return nil, err
	}
	out := make(chan llm.StreamEvent)
	go func() {
		defer close(out)
		for i, part := range resp.Content {
			var delta llm.PartDelta
			switch part.Type {
			case llm.PartTypeText:
				delta = llm.NewTextPartDelta(part.Text)
			case llm.PartTypeToolCall:
				delta = llm.NewToolCallPartDelta(part.ToolCall.ToolCallID, part.ToolCall.ToolName, string(part.ToolCall.Args))
			case llm.PartTypeReasoning:
				delta = llm.NewReasoningPartDelta(part.Reasoning.Text)
			}
			out <- llm.StreamEvent{Partial: &llm.PartialModelResponse{
				Delta: &llm.ContentDelta{Index: i, Part: delta},
			}}
		}
		if resp.Usage != nil {
			out <- llm.StreamEvent{Partial: &llm.PartialModelResponse{Usage: resp.Usage}}
		}
	}()
	return out, nil
}

func textResponse(text string) *llm.ModelResponse {
	return &llm.ModelResponse{Content: []llm.Part{llm.NewTextPart(text)}}
}

func toolCallResponse(calls ...llm.Part) *llm.ModelResponse {
	return &llm.ModelResponse{Content: calls}
}

var weatherParams = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city": map[string]any{"type": "string"},
	},
	"required":             []any{"city"},
	"additionalProperties": false,
}

func TestRunSingleTextTurn(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("Mock response")}}
	a := New[struct{}]("assistant", model)

	resp, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("Hello")}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if resp.Text() != "Mock response" {
		t.Errorf("got content %q, want %q", resp.Text(), "Mock response")
	}
	if len(resp.Output) != 1 || resp.Output[0].Type != AgentItemTypeModel {
		t.Errorf("got output %+v, want one model item", resp.Output)
	}
	if model.calls.Load() != 1 {
		t.Errorf("got %d model calls, want 1", model.calls.Load())
	}
}

func TestRunParallelToolCallsPreserveOrder(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(
			llm.NewToolCallPart("a", "get_weather", json.RawMessage(`{"city":"NYC"}`)),
			llm.NewToolCallPart("b", "get_weather", json.RawMessage(`{"city":"LA"}`)),
		),
		textResponse("Both sunny."),
	}}

	// NYC blocks until LA has finished, forcing out-of-order completion.
	laDone := make(chan struct{})
	tool := NewFuncTool[struct{}]("get_weather", "Get a forecast", weatherParams,
		func(ctx context.Context, args json.RawMessage, _ struct{}, _ *RunState) (ToolResult, error) {
			var req struct {
				City string `json:"city"`
			}
			if err := json.Unmarshal(args, &req); err != nil {
				return ToolResult{}, err
			}
			if req.City == "LA" {
				defer close(laDone)
			} else {
				<-laDone
			}
			return TextResult(`{"forecast":"Sunny"}`), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	resp, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("Weather?")}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if resp.Text() != "Both sunny." {
		t.Errorf("got final content %q", resp.Text())
	}
	if len(resp.Output) != 3 {
		t.Fatalf("got %d output items, want 3", len(resp.Output))
	}

	toolMsg := resp.Output[1]
	if toolMsg.Type != AgentItemTypeMessage || toolMsg.Message.Role != llm.RoleTool {
		t.Fatalf("output[1] is not a tool message: %+v", toolMsg)
	}
	results := toolMsg.Message.Content
	if len(results) != 2 {
		t.Fatalf("got %d tool results, want 2", len(results))
	}
	if results[0].ToolResult.ToolCallID != "a" || results[1].ToolResult.ToolCallID != "b" {
		t.Errorf("result order: got %q, %q, want a, b",
			results[0].ToolResult.ToolCallID, results[1].ToolResult.ToolCallID)
	}
	if model.calls.Load() != 2 {
		t.Errorf("got %d model calls, want 2", model.calls.Load())
	}
}

func TestRunUnknownTool(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("x", "does_not_exist", json.RawMessage(`{}`))),
	}}
	a := New[struct{}]("assistant", model)

	_, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("go")}})
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
	if inv.Reason != "Tool does_not_exist not found for tool call" {
		t.Errorf("got reason %q", inv.Reason)
	}
}

func TestRunToolRecoverableError(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "fetch", json.RawMessage(`{}`))),
		textResponse("The network seems down."),
	}}
	tool := NewFuncTool[struct{}]("fetch", "Fetch data", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
			return ErrorResult("network down"), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	resp, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("fetch")}})
	if err != nil {
		t.Fatalf("run should continue past a recoverable tool error, got: %v", err)
	}

	// The second model call must see the error result.
	second := model.inputs[1]
	last := second.Messages[len(second.Messages)-1]
	if last.Role != llm.RoleTool {
		t.Fatalf("last message role %q, want tool", last.Role)
	}
	if !last.Content[0].ToolResult.IsError {
		t.Error("tool result should carry is_error")
	}
	if resp.Text() != "The network seems down." {
		t.Errorf("got final content %q", resp.Text())
	}
}

func TestRunToolFatalError(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "boom", json.RawMessage(`{}`))),
	}}
	tool := NewFuncTool[struct{}]("boom", "Always fails", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
			return ToolResult{}, errors.New("disk on fire")
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	_, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("go")}})
	var te *ToolExecutionError
	if !errors.As(err, &te) {
		t.Fatalf("got %v, want ToolExecutionError", err)
	}
	if te.ToolName != "boom" {
		t.Errorf("got tool name %q", te.ToolName)
	}
}

func TestRunMaxTurnsExceeded(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "noop", json.RawMessage(`{}`))),
	}}
	tool := NewFuncTool[struct{}]("noop", "Does nothing", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
			return TextResult("ok"), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool), WithMaxTurns[struct{}](3))
	_, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("loop")}})
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
	if model.calls.Load() != 3 {
		t.Errorf("got %d model calls, want exactly 3", model.calls.Load())
	}
}

func TestRunZeroMaxTurnsFailsImmediately(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("never")}}
	a := New[struct{}]("assistant", llm.LanguageModel(model), WithMaxTurns[struct{}](0))

	_, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("hi")}})
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
	if model.calls.Load() != 0 {
		t.Errorf("model was invoked %d times, want 0", model.calls.Load())
	}
}

func TestRunInvalidArgumentsRecoverable(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "get_weather", json.RawMessage(`{"city":42}`))),
		textResponse("Could not read the city."),
	}}
	executed := atomic.Bool{}
	tool := NewFuncTool[struct{}]("get_weather", "Get a forecast", weatherParams,
		func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
			executed.Store(true)
			return TextResult("sunny"), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	resp, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("weather")}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if executed.Load() {
		t.Error("tool ran despite invalid arguments")
	}
	toolMsg := resp.Output[1].Message
	if !toolMsg.Content[0].ToolResult.IsError {
		t.Error("invalid arguments should yield an is_error result")
	}
}

func TestCreateSessionRejectsBadTools(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("ok")}}
	noop := func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
		return TextResult("ok"), nil
	}

	tests := []struct {
		name  string
		tools []Tool[struct{}]
	}{
		{"InvalidName", []Tool[struct{}]{
			NewFuncTool("bad name!", "x", map[string]any{"type": "object"}, noop),
		}},
		{"Duplicate", []Tool[struct{}]{
			NewFuncTool("dup", "x", map[string]any{"type": "object"}, noop),
			NewFuncTool("dup", "y", map[string]any{"type": "object"}, noop),
		}},
		{"NonObjectSchema", []Tool[struct{}]{
			NewFuncTool("scalar", "x", map[string]any{"type": "string"}, noop),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New("assistant", llm.LanguageModel(model), WithTools(tt.tools...))
			_, err := a.CreateSession(context.Background(), struct{}{})
			var inv *InvariantError
			if !errors.As(err, &inv) {
				t.Fatalf("got %v, want InvariantError", err)
			}
		})
	}
}

func TestRunStatePropagatesAcrossTurns(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "count", json.RawMessage(`{}`))),
		toolCallResponse(llm.NewToolCallPart("b", "count", json.RawMessage(`{}`))),
		textResponse("done"),
	}}
	tool := NewFuncTool[struct{}]("count", "Counts invocations", map[string]any{"type": "object"},
		func(_ context.Context, _ json.RawMessage, _ struct{}, state *RunState) (ToolResult, error) {
			n := 0
			if v, ok := state.Get("n"); ok {
				n = v.(int)
			}
			n++
			state.Set("n", n)
			return TextResult(fmt.Sprintf("%d", n)), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	resp, err := a.Run(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("count twice")}})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	second := resp.Output[3].Message.Content[0].ToolResult
	if got := llm.TextParts(second.Content); got != "2" {
		t.Errorf("second invocation saw %q, want 2", got)
	}
}

func TestItemsToMessages(t *testing.T) {
	modelItem := NewModelItem(&llm.ModelResponse{
		Content: []llm.Part{llm.NewTextPart("earlier answer")},
		Usage:   &llm.ModelUsage{InputTokens: 5},
	})
	messages, err := itemsToMessages([]AgentItem{UserItem("hi"), modelItem})
	if err != nil {
		t.Fatalf("itemsToMessages() error: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[1].Role != llm.RoleAssistant {
		t.Errorf("model item should expand to assistant message, got %q", messages[1].Role)
	}
	if messages[1].TextContent() != "earlier answer" {
		t.Errorf("got %q", messages[1].TextContent())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("ok")}}
	closes := atomic.Int32{}
	toolkit := &countingToolkit{closes: &closes}

	a := New[struct{}]("assistant", llm.LanguageModel(model), WithToolkits[struct{}](toolkit))
	session, err := a.CreateSession(context.Background(), struct{}{})
	if err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if closes.Load() != 1 {
		t.Errorf("toolkit session closed %d times, want 1", closes.Load())
	}
}

// countingToolkit counts toolkit session closes.
type countingToolkit struct {
	closes *atomic.Int32
	err    error
}

func (t *countingToolkit) CreateSession(ctx context.Context, c struct{}) (ToolkitSession[struct{}], error) {
	return &countingToolkitSession{toolkit: t}, nil
}

type countingToolkitSession struct {
	toolkit *countingToolkit
}

func (s *countingToolkitSession) SystemPrompt() string    { return "" }
func (s *countingToolkitSession) Tools() []Tool[struct{}] { return nil }
func (s *countingToolkitSession) Close() error {
	s.toolkit.closes.Add(1)
	return s.toolkit.err
}
