package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/creatorkit/captiongen/internal/cache"
	"github.com/creatorkit/captiongen/internal/config"
	"github.com/creatorkit/captiongen/internal/factory"
	"github.com/creatorkit/captiongen/internal/generate"
	"github.com/creatorkit/captiongen/internal/prompt"
	"github.com/creatorkit/captiongen/internal/quota"
	"github.com/creatorkit/captiongen/internal/server"
	"github.com/creatorkit/captiongen/internal/store"
	"github.com/creatorkit/captiongen/internal/vault"
	"github.com/creatorkit/captiongen/pkg/telemetry"
	"github.com/rs/zerolog"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup logging
	logger := setupLogger()

	logger.Info().
		Str("config", *configPath).
		Msg("Starting captiongen")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Info().
		Str("provider", cfg.Provider).
		Int("port", cfg.Port).
		Msg("Configuration loaded")

	// Credential vault backed by the durable store
	v, err := vault.New(cfg.ProcessSecret, store.NewFileStore(cfg.CredentialsDir), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create credential vault")
	}

	// Resolve the provider key at startup; a provider without a key falls
	// back to the deterministic mock inside the factory.
	apiKey := v.GetKey(context.Background(), vault.Actor{Name: "startup"}, cfg.Provider)

	p, err := factory.NewProvider(factory.ProviderConfig{
		Name:   cfg.Provider,
		Model:  cfg.Model,
		APIKey: apiKey,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create provider")
	}

	logger.Info().
		Str("provider", p.Name()).
		Str("model", p.Model()).
		Msg("Provider ready")

	// Two-tier content cache: memory in front of the cache directory
	cm := cache.NewManager(
		store.NewMemoryStore(),
		store.NewFileStore(cfg.Cache.Dir),
		cfg.Cache.LogicVersion,
		time.Duration(cfg.Cache.TTL),
		logger,
	)

	premium := make(quota.PremiumList, len(cfg.Quota.PremiumUsers))
	for _, id := range cfg.Quota.PremiumUsers {
		premium["user:"+id] = true
	}

	limiter := quota.NewLimiter(store.NewMemoryStore(), quota.Policy{
		GuestPerHour:   cfg.Quota.GuestLimit,
		FreePerHour:    cfg.Quota.FreeLimit,
		PremiumPerHour: cfg.Quota.PremiumLimit,
	}, premium, logger)

	tracker := telemetry.NewUsageTracker(logger)

	svc := generate.New(p, cm, limiter, tracker, prompt.Config{
		SystemMessage:    cfg.Prompt.SystemMessage,
		ToneDescriptors:  cfg.Prompt.ToneDescriptors,
		PlatformGuidance: cfg.Prompt.PlatformGuidance,
	}, cfg.PlatformLimits, logger)

	srv := server.New(svc, v, tracker, p.Name(), p.Model(), cfg.AdminToken, cfg.Port, logger)
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// setupLogger configures zerolog
func setupLogger() zerolog.Logger {
	// Pretty console output
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()

	// Set log level from environment
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
