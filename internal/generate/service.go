// Package generate orchestrates content generation end to end.
//
// The generate package sequences validation, the cache, the quota limiter,
// prompt building, the provider call, and parsing into the single Generate
// operation. A cache hit short-circuits both the quota check and the
// provider call. Failures surface as typed errors; no retries happen here.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creatorkit/captiongen/internal/cache"
	"github.com/creatorkit/captiongen/internal/parse"
	"github.com/creatorkit/captiongen/internal/prompt"
	"github.com/creatorkit/captiongen/internal/provider"
	"github.com/creatorkit/captiongen/internal/quota"
	"github.com/creatorkit/captiongen/pkg/telemetry"
	"github.com/rs/zerolog"
)

// quotaCacheScope names the identity-scoped cache family for quota status.
const quotaCacheScope = "quota"

// DefaultPlatformLimits is the built-in platform character-limit table.
var DefaultPlatformLimits = map[string]int{
	"short-form": 280,
	"long-form":  63206,
	"instagram":  2200,
	"linkedin":   3000,
	"tiktok":     5000,
}

// Meta carries response metadata alongside the generated items.
type Meta struct {
	PlatformLimits map[string]int `json:"platform_limits"`
	Cached         bool           `json:"cached"`
	RemainingQuota int            `json:"remaining_quota"`
}

// Result is the outcome of a Generate call: items per requested platform
// plus metadata.
type Result struct {
	Items map[string][]parse.Item `json:"items"`
	Meta  Meta                    `json:"meta"`
}

// Service is the generation orchestrator.
type Service struct {
	provider       provider.Provider
	cache          *cache.Manager
	limiter        *quota.Limiter
	tracker        *telemetry.UsageTracker
	promptCfg      prompt.Config
	platformLimits map[string]int
	logger         zerolog.Logger
}

// New creates the orchestrator. A nil platformLimits falls back to the
// built-in table.
func New(p provider.Provider, cm *cache.Manager, limiter *quota.Limiter, tracker *telemetry.UsageTracker, promptCfg prompt.Config, platformLimits map[string]int, logger zerolog.Logger) *Service {
	if len(platformLimits) == 0 {
		platformLimits = DefaultPlatformLimits
	}
	return &Service{
		provider:       p,
		cache:          cm,
		limiter:        limiter,
		tracker:        tracker,
		promptCfg:      promptCfg,
		platformLimits: platformLimits,
		logger:         logger,
	}
}

// PlatformLimits returns the configured character-limit table.
func (s *Service) PlatformLimits() map[string]int {
	return s.platformLimits
}

// Generate runs the full pipeline for one request.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	req.normalize()
	if err := req.validate(s.platformLimits); err != nil {
		return nil, err
	}

	identity := req.Identity.Key()

	s.logger.Info().
		Str("tone", req.Tone).
		Strs("platforms", req.Platforms).
		Bool("anonymous", req.Identity.IsAnonymous()).
		Msg("Generation request received")

	items := make(map[string][]parse.Item, len(req.Platforms))
	var missing []string
	for _, platform := range req.Platforms {
		key := s.cache.Key(req.Description, req.Tone, platform)
		if cached, ok := s.cache.Lookup(ctx, key); ok {
			items[platform] = cached
		} else {
			missing = append(missing, platform)
		}
	}

	cached := len(missing) == 0
	if !cached {
		if len(missing) == 1 {
			platform := missing[0]
			key := s.cache.Key(req.Description, req.Tone, platform)
			produced, _, err := s.cache.Remember(ctx, key, func(ctx context.Context) ([]parse.Item, error) {
				sections, err := s.produce(ctx, req, identity, []string{platform})
				if err != nil {
					return nil, err
				}
				return sections[platform], nil
			})
			if err != nil {
				return nil, err
			}
			items[platform] = produced
		} else {
			sections, err := s.produce(ctx, req, identity, missing)
			if err != nil {
				return nil, err
			}
			for _, platform := range missing {
				items[platform] = sections[platform]
				s.cache.Put(ctx, s.cache.Key(req.Description, req.Tone, platform), sections[platform])
			}
		}

		// Usage changed, so the cached quota status is stale
		s.cache.InvalidateIdentityEntry(ctx, quotaCacheScope, identity)
	}

	remaining, err := s.limiter.Remaining(ctx, identity, req.Tier)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Remaining quota read failed")
	}

	s.tracker.RecordGeneration(cached)

	s.logger.Info().
		Bool("cached", cached).
		Int("remaining_quota", remaining).
		Msg("Generation request completed")

	return &Result{
		Items: items,
		Meta: Meta{
			PlatformLimits: s.requestedLimits(req.Platforms),
			Cached:         cached,
			RemainingQuota: remaining,
		},
	}, nil
}

// produce is the cache-miss path: quota check, prompt build, provider call,
// parse. The quota check-and-increment happens here, before the provider is
// invoked, as a single atomic counter operation.
func (s *Service) produce(ctx context.Context, req Request, identity string, platforms []string) (map[string][]parse.Item, error) {
	if err := s.limiter.CheckAndIncrement(ctx, identity, req.Tier); err != nil {
		var exceeded *quota.QuotaExceededError
		if errors.As(err, &exceeded) {
			s.tracker.RecordQuotaRejection()
		}
		return nil, err
	}

	system, user := prompt.BuildBatch(req.Description, req.Tone, platforms, s.platformLimits, s.promptCfg)

	resp, err := s.provider.GenerateText(ctx, system, user)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Err: err}
		}
		s.tracker.RecordProviderError()
		s.logger.Error().
			Err(err).
			Str("provider", s.provider.Name()).
			Str("operation", "generate_text").
			Msg("Provider call failed")
		return nil, err
	}

	if len(platforms) == 1 {
		return map[string][]parse.Item{platforms[0]: parse.Items(resp.Content)}, nil
	}
	return parse.Sections(resp.Content, platforms), nil
}

// QuotaStatus reports the identity's remaining quota. Results are cached per
// identity for a short period and invalidated when usage changes.
func (s *Service) QuotaStatus(ctx context.Context, identity Identity, tier quota.Tier) (int, error) {
	key := identity.Key()

	if data, ok := s.cache.GetIdentityEntry(ctx, quotaCacheScope, key); ok {
		var status struct {
			Remaining int `json:"remaining"`
		}
		if err := json.Unmarshal(data, &status); err == nil {
			return status.Remaining, nil
		}
	}

	remaining, err := s.limiter.Remaining(ctx, key, tier)
	if err != nil {
		return 0, fmt.Errorf("quota status: %w", err)
	}

	if data, err := json.Marshal(struct {
		Remaining int `json:"remaining"`
	}{remaining}); err == nil {
		_ = s.cache.SetIdentityEntry(ctx, quotaCacheScope, key, data)
	}

	return remaining, nil
}

// QuotaLimit returns the effective per-window ceiling for the identity.
func (s *Service) QuotaLimit(identity Identity, tier quota.Tier) int {
	return s.limiter.Limit(identity.Key(), tier)
}

// Tier resolves the identity's effective tier after premium promotion.
func (s *Service) Tier(identity Identity, tier quota.Tier) quota.Tier {
	return s.limiter.EffectiveTier(identity.Key(), tier)
}

// requestedLimits filters the limit table down to the requested platforms.
func (s *Service) requestedLimits(platforms []string) map[string]int {
	limits := make(map[string]int, len(platforms))
	for _, p := range platforms {
		limits[p] = s.platformLimits[p]
	}
	return limits
}
