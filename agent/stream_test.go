// ABOUTME: Tests for streaming runs: event ordering, terminal events, and partial forwarding.
// ABOUTME: Uses the scripted mock model replaying responses as single-part deltas.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harborai/loom/llm"
)

func collect(t *testing.T, stream <-chan AgentStreamEvent) []AgentStreamEvent {
	t.Helper()
	var events []AgentStreamEvent
	for ev := range stream {
		events = append(events, ev)
	}
	return events
}

func TestRunStreamSingleTextTurn(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{textResponse("Mock")}}
	a := New[struct{}]("assistant", model)

	stream, err := a.RunStream(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("Hello")}})
	if err != nil {
		t.Fatalf("RunStream() error: %v", err)
	}
	events := collect(t, stream)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}

	if events[0].Partial == nil || events[0].Partial.Delta == nil {
		t.Fatalf("event 0 should be a partial, got %+v", events[0])
	}
	if events[0].Partial.Delta.Part.Text.Text != "Mock" {
		t.Errorf("got delta text %q", events[0].Partial.Delta.Part.Text.Text)
	}

	if events[1].Item == nil || events[1].Item.Index != 0 {
		t.Fatalf("event 1 should be item 0, got %+v", events[1])
	}
	if events[1].Item.Item.Type != AgentItemTypeModel {
		t.Errorf("item should be a model item")
	}

	if events[2].Response == nil {
		t.Fatalf("event 2 should be the response, got %+v", events[2])
	}
	if events[2].Response.Text() != "Mock" {
		t.Errorf("got response content %q", events[2].Response.Text())
	}
}

func TestRunStreamEventOrdering(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("a", "noop", json.RawMessage(`{}`))),
		textResponse("done"),
	}}
	tool := NewFuncTool[struct{}]("noop", "Does nothing", map[string]any{"type": "object"},
		func(context.Context, json.RawMessage, struct{}, *RunState) (ToolResult, error) {
			return TextResult("ok"), nil
		})

	a := New("assistant", llm.LanguageModel(model), WithTools[struct{}](tool))
	stream, err := a.RunStream(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("go")}})
	if err != nil {
		t.Fatalf("RunStream() error: %v", err)
	}
	events := collect(t, stream)

	// Expected shape: partial, item 0 (model), item 1 (tool msg),
	// partial, item 2 (model), response.
	var kinds []string
	for _, ev := range events {
		switch {
		case ev.Partial != nil:
			kinds = append(kinds, "partial")
		case ev.Item != nil:
			kinds = append(kinds, "item")
		case ev.Response != nil:
			kinds = append(kinds, "response")
		case ev.Err != nil:
			kinds = append(kinds, "err")
		}
	}
	want := []string{"partial", "item", "item", "partial", "item", "response"}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event %d: got %v, want %v", i, kinds, want)
		}
	}

	// Item indices are monotonic from zero.
	wantIndex := 0
	for _, ev := range events {
		if ev.Item != nil {
			if ev.Item.Index != wantIndex {
				t.Errorf("got item index %d, want %d", ev.Item.Index, wantIndex)
			}
			wantIndex++
		}
	}
}

func TestRunStreamModelErrorTerminal(t *testing.T) {
	model := &mockModel{err: llm.NewStatusCodeError(500, "boom")}
	a := New[struct{}]("assistant", model)

	stream, err := a.RunStream(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("hi")}})
	if err != nil {
		t.Fatalf("RunStream() error: %v", err)
	}
	events := collect(t, stream)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if !llm.IsStatusCode(events[0].Err, 500) {
		t.Errorf("got %v, want StatusCodeError 500", events[0].Err)
	}
}

func TestRunStreamUnknownToolTerminal(t *testing.T) {
	model := &mockModel{responses: []*llm.ModelResponse{
		toolCallResponse(llm.NewToolCallPart("x", "missing", json.RawMessage(`{}`))),
	}}
	a := New[struct{}]("assistant", model)

	stream, err := a.RunStream(context.Background(), AgentRequest[struct{}]{Input: []AgentItem{UserItem("go")}})
	if err != nil {
		t.Fatalf("RunStream() error: %v", err)
	}
	events := collect(t, stream)

	last := events[len(events)-1]
	var inv *InvariantError
	if !errors.As(last.Err, &inv) {
		t.Fatalf("last event should be an invariant error, got %+v", last)
	}
	for _, ev := range events {
		if ev.Response != nil {
			t.Error("failed run must not emit a Response event")
		}
	}
}
