// Package telemetry provides in-process usage statistics for the generation
// service.
//
// The telemetry package counts generation requests, cache hits and misses,
// quota rejections, and provider failures, with daily counters that reset at
// midnight and running totals. The HTTP surface serves a snapshot of both.
package telemetry

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// UsageTracker accumulates service counters.
type UsageTracker struct {
	mu sync.RWMutex

	// Daily tracking (resets at midnight)
	dailyRequests        int64
	dailyCacheHits       int64
	dailyCacheMisses     int64
	dailyQuotaRejections int64
	dailyProviderErrors  int64
	lastResetDate        string

	// Overall tracking
	totalRequests        int64
	totalCacheHits       int64
	totalCacheMisses     int64
	totalQuotaRejections int64
	totalProviderErrors  int64

	logger zerolog.Logger
}

// NewUsageTracker creates a tracker with counters starting at zero.
func NewUsageTracker(logger zerolog.Logger) *UsageTracker {
	return &UsageTracker{
		lastResetDate: time.Now().Format("2006-01-02"),
		logger:        logger,
	}
}

// RecordGeneration records one completed generation request and whether it
// was served from cache.
func (t *UsageTracker) RecordGeneration(cached bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeReset()

	t.dailyRequests++
	t.totalRequests++
	if cached {
		t.dailyCacheHits++
		t.totalCacheHits++
	} else {
		t.dailyCacheMisses++
		t.totalCacheMisses++
	}
}

// RecordQuotaRejection records a request refused for being over quota.
func (t *UsageTracker) RecordQuotaRejection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeReset()

	t.dailyQuotaRejections++
	t.totalQuotaRejections++
}

// RecordProviderError records an upstream provider or network failure.
func (t *UsageTracker) RecordProviderError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeReset()

	t.dailyProviderErrors++
	t.totalProviderErrors++
}

// DailyStats holds the counters for the current day.
type DailyStats struct {
	Requests        int64 `json:"requests"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	QuotaRejections int64 `json:"quota_rejections"`
	ProviderErrors  int64 `json:"provider_errors"`
}

// TotalStats holds the running totals since process start.
type TotalStats struct {
	Requests        int64 `json:"requests"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	QuotaRejections int64 `json:"quota_rejections"`
	ProviderErrors  int64 `json:"provider_errors"`
}

// GetDailyStats returns the current day's counters.
func (t *UsageTracker) GetDailyStats() DailyStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeReset()

	return DailyStats{
		Requests:        t.dailyRequests,
		CacheHits:       t.dailyCacheHits,
		CacheMisses:     t.dailyCacheMisses,
		QuotaRejections: t.dailyQuotaRejections,
		ProviderErrors:  t.dailyProviderErrors,
	}
}

// GetTotalStats returns the running totals.
func (t *UsageTracker) GetTotalStats() TotalStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TotalStats{
		Requests:        t.totalRequests,
		CacheHits:       t.totalCacheHits,
		CacheMisses:     t.totalCacheMisses,
		QuotaRejections: t.totalQuotaRejections,
		ProviderErrors:  t.totalProviderErrors,
	}
}

// maybeReset zeroes the daily counters on the first touch of a new day.
// Callers must hold the write lock.
func (t *UsageTracker) maybeReset() {
	today := time.Now().Format("2006-01-02")
	if today == t.lastResetDate {
		return
	}

	t.logger.Info().
		Str("date", t.lastResetDate).
		Int64("requests", t.dailyRequests).
		Msg("Daily usage counters reset")

	t.dailyRequests = 0
	t.dailyCacheHits = 0
	t.dailyCacheMisses = 0
	t.dailyQuotaRejections = 0
	t.dailyProviderErrors = 0
	t.lastResetDate = today
}
