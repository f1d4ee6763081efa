// Package llm adapts generative-AI providers to ports.TextGenerator.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/ports"
)

// NewGenerator returns the configured provider, or nil when drafting should use the template.
// A provider without an API key is treated as unconfigured.
func NewGenerator(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (ports.TextGenerator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	active := cfg.Active()

	switch cfg.Provider {
	case config.ProviderTemplate:
		logger.Info("generative provider disabled, using templates")
		return nil, nil
	case config.ProviderGemini, "":
		if active.APIKey == "" {
			logger.Warn("gemini API key missing, using templates")
			return nil, nil
		}
		client, err := NewGeminiClient(ctx, active)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderClaude:
		if active.APIKey == "" {
			logger.Warn("anthropic API key missing, using templates")
			return nil, nil
		}
		client, err := NewClaudeClient(active)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		if active.APIKey == "" {
			logger.Warn("openai API key missing, using templates")
			return nil, nil
		}
		return NewChatGPTClient(active), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
