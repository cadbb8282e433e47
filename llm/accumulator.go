// ABOUTME: Streaming accumulator that folds PartialModelResponse chunks into a complete ModelResponse.
// ABOUTME: Implements cross-provider delta index reconciliation and per-kind delta merging.

package llm

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// StreamAccumulator collects streamed content deltas and usage and rebuilds a
// canonical ModelResponse. It is not safe for concurrent use; a single
// goroutine owns it for the lifetime of one stream.
type StreamAccumulator struct {
	deltas  []ContentDelta
	usage   *ModelUsage
	cost    *float64
	// provider tags invariant errors raised while finalizing.
	provider string
}

// NewStreamAccumulator creates an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{provider: "stream"}
}

// Add ingests one streamed chunk. Deltas are stored in arrival order; usage
// and cost accumulate monotonically.
func (a *StreamAccumulator) Add(partial *PartialModelResponse) {
	if partial == nil {
		return
	}
	if partial.Delta != nil {
		a.deltas = append(a.deltas, *partial.Delta)
	}
	if partial.Usage != nil {
		if a.usage == nil {
			a.usage = &ModelUsage{}
		}
		merged := a.usage.Add(*partial.Usage)
		a.usage = &merged
	}
	if partial.Cost != nil {
		if a.cost == nil {
			a.cost = new(float64)
		}
		*a.cost += *partial.Cost
	}
}

// Deltas returns the deltas accumulated so far, in arrival order. The slice
// is shared; callers must not mutate it.
func (a *StreamAccumulator) Deltas() []ContentDelta {
	return a.deltas
}

// GuessDeltaIndex assigns an index to a delta emitted without an
// authoritative one. OpenAI-style providers stream text and audio without
// indices and tool calls with an independent tool-call-array index, so:
//
//  1. Seen indices are deduplicated into a unique list preserving first
//     occurrence.
//  2. A tool call delta with a provider tool-call-array index reuses the k-th
//     tool-call index in the unique list, or appends a new index equal to the
//     unique count.
//  3. Any other delta reuses the most recent same-kind index.
//  4. Otherwise the next index after the maximum seen is assigned (0 when
//     nothing has been seen).
//
// The result: text and audio each occupy at most one index, and tool calls
// line up with the provider's array order.
func GuessDeltaIndex(part PartDelta, existing []ContentDelta, toolCallIndex *int) int {
	var unique []int
	kinds := make(map[int]PartDeltaType)
	seen := make(map[int]bool)
	maxIndex := -1
	for _, d := range existing {
		if !seen[d.Index] {
			seen[d.Index] = true
			unique = append(unique, d.Index)
			kinds[d.Index] = d.Part.Type
		}
		if d.Index > maxIndex {
			maxIndex = d.Index
		}
	}

	if part.Type == PartDeltaTypeToolCall && toolCallIndex != nil {
		nth := 0
		for _, idx := range unique {
			if kinds[idx] == PartDeltaTypeToolCall {
				if nth == *toolCallIndex {
					return idx
				}
				nth++
			}
		}
		return len(unique)
	}

	for i := len(unique) - 1; i >= 0; i-- {
		if kinds[unique[i]] == part.Type {
			return unique[i]
		}
	}

	return maxIndex + 1
}

// Response snapshots the accumulated state into a complete ModelResponse.
// It is non-destructive; the accumulator can keep receiving deltas afterward.
func (a *StreamAccumulator) Response() (*ModelResponse, error) {
	groups := make(map[int][]PartDelta)
	var indices []int
	for _, d := range a.deltas {
		if _, ok := groups[d.Index]; !ok {
			indices = append(indices, d.Index)
		}
		groups[d.Index] = append(groups[d.Index], d.Part)
	}
	sort.Ints(indices)

	content := make([]Part, 0, len(indices))
	for _, idx := range indices {
		part, err := a.foldGroup(idx, groups[idx])
		if err != nil {
			return nil, err
		}
		content = append(content, part)
	}

	resp := &ModelResponse{Content: content}
	if a.usage != nil {
		usage := *a.usage
		resp.Usage = &usage
	}
	if a.cost != nil {
		cost := *a.cost
		resp.Cost = &cost
	}
	return resp, nil
}

// foldGroup merges all deltas that share one index into a single Part.
func (a *StreamAccumulator) foldGroup(index int, deltas []PartDelta) (Part, error) {
	kind := deltas[0].Type
	for _, d := range deltas {
		if d.Type != kind {
			return Part{}, NewInvariantError(a.provider,
				fmt.Sprintf("conflicting delta kinds %s and %s at index %d", kind, d.Type, index))
		}
	}

	switch kind {
	case PartDeltaTypeText:
		return a.foldText(deltas), nil
	case PartDeltaTypeReasoning:
		return a.foldReasoning(deltas), nil
	case PartDeltaTypeToolCall:
		return a.foldToolCall(index, deltas)
	case PartDeltaTypeAudio:
		return a.foldAudio(index, deltas)
	}
	return Part{}, NewInvariantError(a.provider, fmt.Sprintf("unknown delta kind %q at index %d", kind, index))
}

func (a *StreamAccumulator) foldText(deltas []PartDelta) Part {
	part := NewTextPart("")
	for _, d := range deltas {
		if d.Text == nil {
			continue
		}
		part.Text += d.Text.Text
		if part.Citation == nil && d.Text.Citation != nil {
			citation := *d.Text.Citation
			part.Citation = &citation
		}
	}
	return part
}

func (a *StreamAccumulator) foldReasoning(deltas []PartDelta) Part {
	part := NewReasoningPart("", "")
	for _, d := range deltas {
		if d.Reasoning == nil {
			continue
		}
		part.Reasoning.Text += d.Reasoning.Text
		if d.Reasoning.Signature != "" {
			part.Reasoning.Signature = d.Reasoning.Signature
		}
	}
	return part
}

func (a *StreamAccumulator) foldToolCall(index int, deltas []PartDelta) (Part, error) {
	var id, name, args string
	for _, d := range deltas {
		if d.ToolCall == nil {
			continue
		}
		if d.ToolCall.ToolCallID != "" {
			id = d.ToolCall.ToolCallID
		}
		if d.ToolCall.ToolName != "" {
			name = d.ToolCall.ToolName
		}
		args += d.ToolCall.Args
	}

	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return Part{}, NewInvariantError(a.provider,
			fmt.Sprintf("malformed tool call arguments at index %d: %s", index, args))
	}
	return NewToolCallPart(id, name, json.RawMessage(args)), nil
}

func (a *StreamAccumulator) foldAudio(index int, deltas []PartDelta) (Part, error) {
	audio := &AudioPartData{}
	var pcm []byte
	for _, d := range deltas {
		if d.Audio == nil {
			continue
		}
		if d.Audio.Data != "" {
			chunk, err := base64.StdEncoding.DecodeString(d.Audio.Data)
			if err != nil {
				return Part{}, NewInvariantError(a.provider,
					fmt.Sprintf("invalid base64 audio data at index %d: %v", index, err))
			}
			pcm = append(pcm, chunk...)
		}
		if d.Audio.Format != "" {
			audio.Format = d.Audio.Format
		}
		if d.Audio.SampleRate != 0 {
			audio.SampleRate = d.Audio.SampleRate
		}
		if d.Audio.Channels != 0 {
			audio.Channels = d.Audio.Channels
		}
		if d.Audio.Transcript != "" {
			audio.Transcript += d.Audio.Transcript
		}
		if d.Audio.AudioID != "" {
			audio.AudioID = d.Audio.AudioID
		}
	}
	audio.Data = base64.StdEncoding.EncodeToString(pcm)
	return Part{Type: PartTypeAudio, Audio: audio}, nil
}
