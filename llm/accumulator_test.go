// ABOUTME: Tests for the stream accumulator: delta folding, index reconciliation, and usage merging.
// ABOUTME: Covers interleaved streams, tool call argument assembly, audio chunk folding, and error cases.

package llm

import (
	"encoding/base64"
	"errors"
	"testing"
)

func addDelta(acc *StreamAccumulator, index int, part PartDelta) {
	acc.Add(&PartialModelResponse{Delta: &ContentDelta{Index: index, Part: part}})
}

func TestAccumulatorTextFolding(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewTextPartDelta("Hello, "))
	addDelta(acc, 0, NewTextPartDelta("world"))
	addDelta(acc, 0, NewTextPartDelta("!"))

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	if len(resp.Content) != 1 {
		t.Fatalf("got %d parts, want 1", len(resp.Content))
	}
	if resp.Content[0].Text != "Hello, world!" {
		t.Errorf("got text %q, want %q", resp.Content[0].Text, "Hello, world!")
	}
}

func TestAccumulatorInterleavedIndices(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 1, NewTextPartDelta("second "))
	addDelta(acc, 0, NewReasoningPartDelta("thinking..."))
	addDelta(acc, 1, NewTextPartDelta("part"))
	addDelta(acc, 2, NewToolCallPartDelta("call_1", "get_weather", `{"location":`))
	addDelta(acc, 2, NewToolCallPartDelta("", "", `"SF"}`))

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	if len(resp.Content) != 3 {
		t.Fatalf("got %d parts, want 3", len(resp.Content))
	}
	if resp.Content[0].Type != PartTypeReasoning || resp.Content[0].Reasoning.Text != "thinking..." {
		t.Errorf("part 0: %+v", resp.Content[0])
	}
	if resp.Content[1].Type != PartTypeText || resp.Content[1].Text != "second part" {
		t.Errorf("part 1: %+v", resp.Content[1])
	}
	call := resp.Content[2]
	if call.Type != PartTypeToolCall {
		t.Fatalf("part 2: got type %q, want tool_call", call.Type)
	}
	if call.ToolCall.ToolCallID != "call_1" || call.ToolCall.ToolName != "get_weather" {
		t.Errorf("tool call identity: %+v", call.ToolCall)
	}
	if string(call.ToolCall.Args) != `{"location":"SF"}` {
		t.Errorf("got args %s", call.ToolCall.Args)
	}
}

func TestAccumulatorEmptyToolArgs(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewToolCallPartDelta("call_1", "refresh", ""))

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	if string(resp.Content[0].ToolCall.Args) != "{}" {
		t.Errorf("got args %s, want {}", resp.Content[0].ToolCall.Args)
	}
}

func TestAccumulatorMalformedToolArgs(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewToolCallPartDelta("call_1", "search", `{"q":`))

	_, err := acc.Response()
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
}

func TestAccumulatorConflictingKinds(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewTextPartDelta("hello"))
	addDelta(acc, 0, NewReasoningPartDelta("hmm"))

	_, err := acc.Response()
	var inv *InvariantError
	if !errors.As(err, &inv) {
		t.Fatalf("got %v, want InvariantError", err)
	}
}

func TestAccumulatorReasoningSignature(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewReasoningPartDelta("step 1. "))
	addDelta(acc, 0, NewReasoningPartDelta("step 2."))
	addDelta(acc, 0, PartDelta{Type: PartDeltaTypeReasoning, Reasoning: &ReasoningPartDelta{Signature: "sig_xyz"}})

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	r := resp.Content[0].Reasoning
	if r.Text != "step 1. step 2." {
		t.Errorf("got text %q", r.Text)
	}
	if r.Signature != "sig_xyz" {
		t.Errorf("got signature %q, want sig_xyz", r.Signature)
	}
}

func TestAccumulatorAudioFolding(t *testing.T) {
	first := base64.StdEncoding.EncodeToString([]byte{0x01, 0x02})
	second := base64.StdEncoding.EncodeToString([]byte{0x03, 0x04})

	acc := NewStreamAccumulator()
	addDelta(acc, 0, PartDelta{Type: PartDeltaTypeAudio, Audio: &AudioPartDelta{
		Data: first, Format: AudioFormatLinear16, SampleRate: 24000, Channels: 1, Transcript: "Hel",
	}})
	addDelta(acc, 0, PartDelta{Type: PartDeltaTypeAudio, Audio: &AudioPartDelta{
		Data: second, Transcript: "lo", AudioID: "audio_1",
	}})

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	audio := resp.Content[0].Audio
	decoded, _ := base64.StdEncoding.DecodeString(audio.Data)
	if len(decoded) != 4 || decoded[0] != 0x01 || decoded[3] != 0x04 {
		t.Errorf("got pcm %v", decoded)
	}
	if audio.Format != AudioFormatLinear16 || audio.SampleRate != 24000 || audio.Channels != 1 {
		t.Errorf("metadata lost: %+v", audio)
	}
	if audio.Transcript != "Hello" {
		t.Errorf("got transcript %q, want Hello", audio.Transcript)
	}
	if audio.AudioID != "audio_1" {
		t.Errorf("got audio id %q, want audio_1", audio.AudioID)
	}
}

func TestAccumulatorUsageAndCost(t *testing.T) {
	acc := NewStreamAccumulator()
	acc.Add(&PartialModelResponse{Usage: &ModelUsage{InputTokens: 100}})
	acc.Add(&PartialModelResponse{Usage: &ModelUsage{OutputTokens: 25}, Cost: Ptr(0.001)})
	acc.Add(&PartialModelResponse{Cost: Ptr(0.002)})

	resp, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	if resp.Usage.InputTokens != 100 || resp.Usage.OutputTokens != 25 {
		t.Errorf("got usage %+v", resp.Usage)
	}
	if resp.Cost == nil || *resp.Cost != 0.003 {
		t.Errorf("got cost %v, want 0.003", resp.Cost)
	}
}

func TestAccumulatorResponseNonDestructive(t *testing.T) {
	acc := NewStreamAccumulator()
	addDelta(acc, 0, NewTextPartDelta("partial"))

	first, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}
	addDelta(acc, 0, NewTextPartDelta(" more"))
	second, err := acc.Response()
	if err != nil {
		t.Fatalf("Response() error: %v", err)
	}

	if first.Content[0].Text != "partial" {
		t.Errorf("first snapshot mutated: %q", first.Content[0].Text)
	}
	if second.Content[0].Text != "partial more" {
		t.Errorf("second snapshot: %q", second.Content[0].Text)
	}
}

func TestGuessDeltaIndex(t *testing.T) {
	text := NewTextPartDelta("x")
	reasoning := NewReasoningPartDelta("y")
	tool := NewToolCallPartDelta("", "", "{")

	t.Run("EmptyStream", func(t *testing.T) {
		if got := GuessDeltaIndex(text, nil, nil); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})

	t.Run("SameKindReuse", func(t *testing.T) {
		existing := []ContentDelta{{Index: 0, Part: text}}
		if got := GuessDeltaIndex(text, existing, nil); got != 0 {
			t.Errorf("got %d, want 0", got)
		}
	})

	t.Run("NewKindAppends", func(t *testing.T) {
		existing := []ContentDelta{{Index: 0, Part: text}}
		if got := GuessDeltaIndex(reasoning, existing, nil); got != 1 {
			t.Errorf("got %d, want 1", got)
		}
	})

	t.Run("ToolCallArrayIndexReuse", func(t *testing.T) {
		existing := []ContentDelta{
			{Index: 0, Part: text},
			{Index: 1, Part: tool},
			{Index: 2, Part: tool},
		}
		if got := GuessDeltaIndex(tool, existing, Ptr(0)); got != 1 {
			t.Errorf("array index 0: got %d, want 1", got)
		}
		if got := GuessDeltaIndex(tool, existing, Ptr(1)); got != 2 {
			t.Errorf("array index 1: got %d, want 2", got)
		}
	})

	t.Run("ToolCallNewArrayIndex", func(t *testing.T) {
		existing := []ContentDelta{
			{Index: 0, Part: text},
			{Index: 1, Part: tool},
		}
		// Two unique indices seen, so a new tool call lands at 2.
		if got := GuessDeltaIndex(tool, existing, Ptr(1)); got != 2 {
			t.Errorf("got %d, want 2", got)
		}
	})

	t.Run("ReverseScanPicksMostRecent", func(t *testing.T) {
		existing := []ContentDelta{
			{Index: 0, Part: text},
			{Index: 1, Part: tool},
			{Index: 2, Part: text},
		}
		if got := GuessDeltaIndex(text, existing, nil); got != 2 {
			t.Errorf("got %d, want 2", got)
		}
	})
}
