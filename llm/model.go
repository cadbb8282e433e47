// ABOUTME: LanguageModel interface, model metadata, capabilities, and cost calculation.
// ABOUTME: Every provider adapter implements this uniform Generate/Stream contract.

package llm

import (
	"context"
)

// LanguageModelCapabilities declares which input and output features a model
// supports. Adapters consult these to reject inputs they cannot honor.
type LanguageModelCapabilities struct {
	FunctionCalling  bool `json:"function_calling"`
	ImageInput       bool `json:"image_input"`
	AudioInput       bool `json:"audio_input"`
	AudioOutput      bool `json:"audio_output"`
	StructuredOutput bool `json:"structured_output"`
	Citations        bool `json:"citations"`
	Reasoning        bool `json:"reasoning"`
}

// LanguageModelPricing holds per-token USD rates for each usage bucket.
// Missing rates are zero, which drops that bucket from the cost sum.
type LanguageModelPricing struct {
	InputCostPerTextToken         float64 `json:"input_cost_per_text_token,omitempty"`
	InputCostPerAudioToken        float64 `json:"input_cost_per_audio_token,omitempty"`
	InputCostPerImageToken        float64 `json:"input_cost_per_image_token,omitempty"`
	InputCostPerCachedTextToken   float64 `json:"input_cost_per_cached_text_token,omitempty"`
	InputCostPerCachedAudioToken  float64 `json:"input_cost_per_cached_audio_token,omitempty"`
	InputCostPerCachedImageToken  float64 `json:"input_cost_per_cached_image_token,omitempty"`
	OutputCostPerTextToken        float64 `json:"output_cost_per_text_token,omitempty"`
	OutputCostPerAudioToken       float64 `json:"output_cost_per_audio_token,omitempty"`
	OutputCostPerImageToken       float64 `json:"output_cost_per_image_token,omitempty"`
}

// LanguageModelMetadata carries optional pricing and capability metadata
// attached to an adapter at construction.
type LanguageModelMetadata struct {
	Pricing      *LanguageModelPricing      `json:"pricing,omitempty"`
	Capabilities *LanguageModelCapabilities `json:"capabilities,omitempty"`
}

// StreamEvent is one element of a model response stream. Exactly one of
// Partial and Err is set; an Err event is terminal.
type StreamEvent struct {
	Partial *PartialModelResponse
	Err     error
}

// LanguageModel is the uniform contract implemented by provider adapters.
type LanguageModel interface {
	// Provider returns the static provider id, e.g. "openai".
	Provider() string

	// ModelID returns the provider-specific model identifier.
	ModelID() string

	// Metadata returns pricing and capability metadata, or nil if none was
	// attached at construction.
	Metadata() *LanguageModelMetadata

	// Generate performs a blocking model call.
	Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error)

	// Stream performs a streaming model call. The returned channel is closed
	// after the final event; an event with Err set terminates the stream.
	Stream(ctx context.Context, input *LanguageModelInput) (<-chan StreamEvent, error)
}

// CalculateCost computes the USD cost of a call from its usage and the
// model's pricing. Token detail buckets that the provider did not report fall
// back to the top-level counts for the plain-text buckets only; other kinds
// default to zero.
func CalculateCost(usage *ModelUsage, pricing *LanguageModelPricing) float64 {
	if usage == nil || pricing == nil {
		return 0
	}

	input := usage.InputTokensDetails
	if input == nil {
		input = &ModelTokensDetails{TextTokens: usage.InputTokens}
	}
	output := usage.OutputTokensDetails
	if output == nil {
		output = &ModelTokensDetails{TextTokens: usage.OutputTokens}
	}

	return float64(input.TextTokens)*pricing.InputCostPerTextToken +
		float64(input.AudioTokens)*pricing.InputCostPerAudioToken +
		float64(input.ImageTokens)*pricing.InputCostPerImageToken +
		float64(input.CachedTextTokens)*pricing.InputCostPerCachedTextToken +
		float64(input.CachedAudioTokens)*pricing.InputCostPerCachedAudioToken +
		float64(input.CachedImageTokens)*pricing.InputCostPerCachedImageToken +
		float64(output.TextTokens)*pricing.OutputCostPerTextToken +
		float64(output.AudioTokens)*pricing.OutputCostPerAudioToken +
		float64(output.ImageTokens)*pricing.OutputCostPerImageToken
}
