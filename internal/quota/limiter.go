// Package quota enforces per-identity generation ceilings over rolling
// hourly windows.
//
// Counters live in a shared counter store keyed by a hash of the identity.
// The window starts at an identity's first generation and resets implicitly
// when the store entry's TTL expires; no scheduled reset is needed. The
// check and the increment are one atomic store operation, so two concurrent
// requests from the same identity cannot both slip past the limit.
package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/creatorkit/captiongen/internal/store"
	"github.com/rs/zerolog"
)

// Window is the rolling quota window, anchored at the first increment.
const Window = time.Hour

// Tier classifies an identity for limit resolution.
type Tier string

const (
	TierGuest   Tier = "guest"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Default hourly ceilings per tier.
const (
	DefaultGuestPerHour   = 5
	DefaultFreePerHour    = 10
	DefaultPremiumPerHour = 50
)

// Policy holds the configured hourly ceilings. Zero fields fall back to the
// defaults.
type Policy struct {
	GuestPerHour   int
	FreePerHour    int
	PremiumPerHour int
}

// LimitFor resolves a tier to its hourly ceiling.
func (p Policy) LimitFor(tier Tier) int {
	switch tier {
	case TierPremium:
		return valueOr(p.PremiumPerHour, DefaultPremiumPerHour)
	case TierFree:
		return valueOr(p.FreePerHour, DefaultFreePerHour)
	default:
		return valueOr(p.GuestPerHour, DefaultGuestPerHour)
	}
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// QuotaExceededError reports a request past the hourly ceiling. It carries
// the numeric limit for user messaging.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("hourly generation limit of %d reached", e.Limit)
}

// PremiumList is a fixed premium identity set, loaded from configuration.
type PremiumList map[string]bool

// IsPremium implements PremiumChecker
func (l PremiumList) IsPremium(identity string) bool {
	return l[identity]
}

// PremiumChecker is the external capability that may upgrade an identity's
// tier classification.
type PremiumChecker interface {
	IsPremium(identity string) bool
}

// Limiter tracks generation counts per identity.
type Limiter struct {
	counters store.CounterStore
	policy   Policy
	premium  PremiumChecker
	logger   zerolog.Logger
}

// NewLimiter creates a Limiter. The premium checker may be nil, in which
// case the caller-supplied tier is used as is.
func NewLimiter(counters store.CounterStore, policy Policy, premium PremiumChecker, logger zerolog.Logger) *Limiter {
	return &Limiter{
		counters: counters,
		policy:   policy,
		premium:  premium,
		logger:   logger,
	}
}

// CounterKey derives the store key for an identity. The increment and the
// read-only remaining-quota path share this derivation; a mismatch between
// the two would silently break enforcement.
func CounterKey(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return "usage:" + hex.EncodeToString(sum[:16])
}

// CheckAndIncrement consumes one generation from the identity's window,
// failing with QuotaExceededError once the tier ceiling is reached.
func (l *Limiter) CheckAndIncrement(ctx context.Context, identity string, tier Tier) error {
	tier = l.classify(identity, tier)
	limit := l.policy.LimitFor(tier)

	count, ok, err := l.counters.IncrementWithCeiling(ctx, CounterKey(identity), limit, Window)
	if err != nil {
		return fmt.Errorf("increment usage counter: %w", err)
	}
	if !ok {
		l.logger.Info().
			Str("tier", string(tier)).
			Int("limit", limit).
			Msg("Generation request over quota")
		return &QuotaExceededError{Limit: limit}
	}

	l.logger.Debug().
		Str("tier", string(tier)).
		Int("count", count).
		Int("limit", limit).
		Msg("Usage recorded")

	return nil
}

// Remaining reports how many generations the identity has left in the
// current window, never below zero.
func (l *Limiter) Remaining(ctx context.Context, identity string, tier Tier) (int, error) {
	tier = l.classify(identity, tier)
	limit := l.policy.LimitFor(tier)

	count, err := l.counters.Count(ctx, CounterKey(identity))
	if err != nil {
		return 0, fmt.Errorf("read usage counter: %w", err)
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Limit resolves the effective ceiling for an identity and caller-declared
// tier.
func (l *Limiter) Limit(identity string, tier Tier) int {
	return l.policy.LimitFor(l.classify(identity, tier))
}

// EffectiveTier resolves the declared tier after the premium capability
// check.
func (l *Limiter) EffectiveTier(identity string, tier Tier) Tier {
	return l.classify(identity, tier)
}

// classify applies the premium capability check on top of the declared tier.
func (l *Limiter) classify(identity string, tier Tier) Tier {
	if l.premium != nil && l.premium.IsPremium(identity) {
		return TierPremium
	}
	switch tier {
	case TierGuest, TierFree, TierPremium:
		return tier
	default:
		return TierGuest
	}
}
