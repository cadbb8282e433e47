// ABOUTME: Tests for cost calculation and the built-in model metadata catalog.
// ABOUTME: Covers per-bucket pricing, the nil-details text fallback, and prefix matching.

package llm

import (
	"math"
	"testing"
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestCalculateCost(t *testing.T) {
	pricing := &LanguageModelPricing{
		InputCostPerTextToken:       perMillion(1),
		InputCostPerCachedTextToken: perMillion(0.1),
		InputCostPerAudioToken:      perMillion(10),
		OutputCostPerTextToken:      perMillion(4),
		OutputCostPerAudioToken:     perMillion(20),
	}
	usage := &ModelUsage{
		InputTokens:  1300,
		OutputTokens: 500,
		InputTokensDetails: &ModelTokensDetails{
			TextTokens:       1000,
			CachedTextTokens: 200,
			AudioTokens:      100,
		},
		OutputTokensDetails: &ModelTokensDetails{
			TextTokens:  400,
			AudioTokens: 100,
		},
	}

	got := CalculateCost(usage, pricing)
	want := perMillion(1)*1000 + perMillion(0.1)*200 + perMillion(10)*100 +
		perMillion(4)*400 + perMillion(20)*100
	if !floatEquals(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCalculateCostNilDetailsFallback(t *testing.T) {
	pricing := &LanguageModelPricing{
		InputCostPerTextToken:  perMillion(1),
		InputCostPerAudioToken: perMillion(10),
		OutputCostPerTextToken: perMillion(4),
	}
	usage := &ModelUsage{InputTokens: 1000, OutputTokens: 100}

	// Without details, top-level counts bill as plain text only.
	got := CalculateCost(usage, pricing)
	want := perMillion(1)*1000 + perMillion(4)*100
	if !floatEquals(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCalculateCostNilInputs(t *testing.T) {
	if got := CalculateCost(nil, &LanguageModelPricing{}); got != 0 {
		t.Errorf("nil usage: got %v", got)
	}
	if got := CalculateCost(&ModelUsage{InputTokens: 5}, nil); got != 0 {
		t.Errorf("nil pricing: got %v", got)
	}
}

func TestLookupModelMetadata(t *testing.T) {
	tests := []struct {
		modelID  string
		wantHit  bool
	}{
		{"gpt-4o-2024-08-06", true},
		{"claude-sonnet-4-20250514", true},
		{"gemini-2.5-flash", true},
		{"totally-unknown-model", false},
	}
	for _, tt := range tests {
		t.Run(tt.modelID, func(t *testing.T) {
			meta := LookupModelMetadata(tt.modelID)
			if (meta != nil) != tt.wantHit {
				t.Errorf("got %v, wantHit %v", meta, tt.wantHit)
			}
			if meta != nil && meta.Pricing == nil {
				t.Error("catalog entry missing pricing")
			}
		})
	}
}

func TestLookupModelMetadataLongestPrefix(t *testing.T) {
	pro := LookupModelMetadata("gemini-2.5-pro")
	flash := LookupModelMetadata("gemini-2.5-flash")
	if pro == nil || flash == nil {
		t.Fatal("expected catalog hits for both models")
	}
	if pro.Pricing.InputCostPerTextToken == flash.Pricing.InputCostPerTextToken {
		t.Error("pro and flash resolved to the same entry")
	}
}
