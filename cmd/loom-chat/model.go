// ABOUTME: Builds a LanguageModel from config, detecting the provider from API keys when unset.
// ABOUTME: Wraps every model with tracing so runs show up in the configured OTel exporter.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/harborai/loom/llm"
)

// Default model per provider when the config does not pin one.
const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultGoogleModel    = "gemini-2.5-flash"
)

// buildModel constructs the configured provider model. When the config
// leaves the provider blank, the first provider with an API key in the
// environment wins, checked in order: Anthropic, OpenAI, Google.
func buildModel(ctx context.Context, cfg *agentConfig) (llm.LanguageModel, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = detectProvider()
	}
	if provider == "" {
		return nil, fmt.Errorf("no provider configured; set one of: ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY")
	}

	switch provider {
	case "openai":
		apiKey, err := resolveAPIKey(cfg, "OPENAI_API_KEY")
		if err != nil {
			return nil, err
		}
		modelID := cfg.Model
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		var opts []llm.OpenAIOption
		if cfg.BaseURL != "" {
			opts = append(opts, llm.WithOpenAIBaseURL(cfg.BaseURL))
		}
		return llm.WithTracing(llm.NewOpenAIModel(apiKey, modelID, opts...)), nil

	case "anthropic":
		apiKey, err := resolveAPIKey(cfg, "ANTHROPIC_API_KEY")
		if err != nil {
			return nil, err
		}
		modelID := cfg.Model
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		var opts []llm.AnthropicOption
		if cfg.BaseURL != "" {
			opts = append(opts, llm.WithAnthropicBaseURL(cfg.BaseURL))
		}
		return llm.WithTracing(llm.NewAnthropicModel(apiKey, modelID, opts...)), nil

	case "google":
		apiKey, err := resolveAPIKey(cfg, "GEMINI_API_KEY")
		if err != nil {
			return nil, err
		}
		modelID := cfg.Model
		if modelID == "" {
			modelID = defaultGoogleModel
		}
		model, err := llm.NewGoogleModel(ctx, apiKey, modelID)
		if err != nil {
			return nil, err
		}
		return llm.WithTracing(model), nil

	default:
		return nil, fmt.Errorf("unknown provider %q (expected openai, anthropic, or google)", provider)
	}
}

// detectProvider picks a provider from whichever API key is set.
func detectProvider() string {
	switch {
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		return "anthropic"
	case os.Getenv("OPENAI_API_KEY") != "":
		return "openai"
	case os.Getenv("GEMINI_API_KEY") != "":
		return "google"
	}
	return ""
}

// resolveAPIKey reads the key from api_key_env when configured, otherwise
// from the provider's conventional variable.
func resolveAPIKey(cfg *agentConfig, defaultEnv string) (string, error) {
	env := cfg.APIKeyEnv
	if env == "" {
		env = defaultEnv
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("missing API key: set %s", env)
	}
	return key, nil
}
