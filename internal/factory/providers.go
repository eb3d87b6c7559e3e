// Package factory provides factory functions for creating text-generation
// providers.
//
// The factory package centralizes provider selection, giving the rest of the
// service a single source of truth keyed by the configured provider name.
package factory

import (
	"github.com/creatorkit/captiongen/internal/provider"
	"github.com/rs/zerolog"
)

// ProviderConfig holds configuration for creating a text-generation provider
type ProviderConfig struct {
	Name   string // "mock" | "openai" | "claude" | "local"
	Model  string
	APIKey string
}

// NewProvider creates a provider based on configuration. An empty or unknown
// provider name, or a remote provider without a configured key, falls back to
// the deterministic mock so the service stays exercisable. The recognized
// "local" provider has no adapter yet and fails explicitly instead.
func NewProvider(cfg ProviderConfig, logger zerolog.Logger) (provider.Provider, error) {
	switch cfg.Name {
	case "", "mock":
		return provider.NewMockProvider(logger), nil

	case "openai":
		if cfg.APIKey == "" {
			logger.Warn().Msg("OpenAI selected but no API key configured, falling back to mock provider")
			return provider.NewMockProvider(logger), nil
		}
		return provider.NewOpenAIProvider(cfg.APIKey, cfg.Model, logger)

	case "claude":
		if cfg.APIKey == "" {
			logger.Warn().Msg("Claude selected but no API key configured, falling back to mock provider")
			return provider.NewMockProvider(logger), nil
		}
		return provider.NewClaudeProvider(cfg.APIKey, cfg.Model, logger)

	case "local":
		return nil, &provider.NotImplementedError{Provider: "local"}

	default:
		logger.Warn().
			Str("provider", cfg.Name).
			Msg("Unknown provider configured, falling back to mock provider")
		return provider.NewMockProvider(logger), nil
	}
}
