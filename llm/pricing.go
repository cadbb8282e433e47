// ABOUTME: Built-in pricing and capability metadata for well-known models.
// ABOUTME: Adapter constructors fall back to this catalog when no explicit metadata is supplied.

package llm

import "strings"

// perMillion converts a USD-per-million-tokens rate into a per-token rate.
func perMillion(usd float64) float64 {
	return usd / 1_000_000
}

// knownModelMetadata maps model id prefixes to default metadata. Longest
// matching prefix wins. Rates current as of early 2026; callers that need
// exact billing should attach their own metadata.
var knownModelMetadata = []struct {
	prefix   string
	metadata LanguageModelMetadata
}{
	{
		prefix: "gpt-5",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:       perMillion(1.25),
				InputCostPerCachedTextToken: perMillion(0.125),
				OutputCostPerTextToken:      perMillion(10),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling:  true,
				ImageInput:       true,
				StructuredOutput: true,
			},
		},
	},
	{
		prefix: "gpt-4o",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:       perMillion(2.5),
				InputCostPerCachedTextToken: perMillion(1.25),
				OutputCostPerTextToken:      perMillion(10),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling:  true,
				ImageInput:       true,
				StructuredOutput: true,
			},
		},
	},
	{
		prefix: "claude-opus-4",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:       perMillion(15),
				InputCostPerCachedTextToken: perMillion(1.5),
				OutputCostPerTextToken:      perMillion(75),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling: true,
				ImageInput:      true,
				Citations:       true,
				Reasoning:       true,
			},
		},
	},
	{
		prefix: "claude-sonnet-4",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:       perMillion(3),
				InputCostPerCachedTextToken: perMillion(0.3),
				OutputCostPerTextToken:      perMillion(15),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling: true,
				ImageInput:      true,
				Citations:       true,
				Reasoning:       true,
			},
		},
	},
	{
		prefix: "gemini-2.5-pro",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:  perMillion(1.25),
				OutputCostPerTextToken: perMillion(10),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling:  true,
				ImageInput:       true,
				AudioInput:       true,
				StructuredOutput: true,
				Reasoning:        true,
			},
		},
	},
	{
		prefix: "gemini-2.5-flash",
		metadata: LanguageModelMetadata{
			Pricing: &LanguageModelPricing{
				InputCostPerTextToken:  perMillion(0.3),
				OutputCostPerTextToken: perMillion(2.5),
			},
			Capabilities: &LanguageModelCapabilities{
				FunctionCalling:  true,
				ImageInput:       true,
				AudioInput:       true,
				StructuredOutput: true,
			},
		},
	},
}

// LookupModelMetadata returns default metadata for a known model id, or nil.
func LookupModelMetadata(modelID string) *LanguageModelMetadata {
	var best *LanguageModelMetadata
	bestLen := 0
	for i := range knownModelMetadata {
		entry := &knownModelMetadata[i]
		if strings.HasPrefix(modelID, entry.prefix) && len(entry.prefix) > bestLen {
			best = &entry.metadata
			bestLen = len(entry.prefix)
		}
	}
	return best
}
