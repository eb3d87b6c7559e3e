// Package cache implements the read-through result cache for generated
// content.
//
// Cache keys are content-addressed: a hash of the normalized description,
// tone, platform, and a manually bumped logic version. Bumping the logic
// version invalidates every prior entry without a bulk delete. Lookups try a
// fast in-process tier first and fall back to a durable tier that survives
// restarts; successful results are written through to both.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/creatorkit/captiongen/internal/parse"
	"github.com/creatorkit/captiongen/internal/store"
	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is how long generated content stays cached.
	DefaultTTL = 6 * time.Hour

	// identityTTL is the shorter lifetime of identity-scoped entries.
	identityTTL = 5 * time.Minute

	contentPrefix  = "content:"
	identityPrefix = "identity:"
)

// Entry is the persisted wire form of a cached generation result. Entries
// are replaced wholesale, never partially updated.
type Entry struct {
	Key       string       `json:"key"`
	Items     []parse.Item `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
}

// Manager serves and stores generation results through the two cache tiers.
type Manager struct {
	fast         store.KeyValueStore
	durable      store.KeyValueStore
	logicVersion string
	ttl          time.Duration
	logger       zerolog.Logger
}

// NewManager creates a cache manager. The durable tier may be nil, leaving
// only the fast tier active.
func NewManager(fast, durable store.KeyValueStore, logicVersion string, ttl time.Duration, logger zerolog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		fast:         fast,
		durable:      durable,
		logicVersion: logicVersion,
		ttl:          ttl,
		logger:       logger,
	}
}

// Key derives the content-addressed cache key for one platform's result.
// The description is normalized (lowercased, trimmed) so trailing whitespace
// and letter case do not split the cache.
func Key(description, tone, platform, logicVersion string) string {
	normalized := strings.ToLower(strings.TrimSpace(description))
	sum := sha256.Sum256([]byte(normalized + "|" + tone + "|" + platform + "|" + logicVersion))
	return contentPrefix + hex.EncodeToString(sum[:])
}

// Key derives the cache key using the manager's configured logic version.
func (m *Manager) Key(description, tone, platform string) string {
	return Key(description, tone, platform, m.logicVersion)
}

// Remember is the single entry point for cached generation: it returns the
// cached items on a hit, otherwise invokes producer and writes the result
// through both tiers. Producer errors propagate and are never cached, so a
// transient failure cannot be served for the full TTL.
func (m *Manager) Remember(ctx context.Context, key string, producer func(context.Context) ([]parse.Item, error)) (items []parse.Item, cached bool, err error) {
	if items, ok := m.lookup(ctx, key); ok {
		return items, true, nil
	}

	items, err = producer(ctx)
	if err != nil {
		return nil, false, err
	}

	m.write(ctx, key, items)
	return items, false, nil
}

// Lookup returns the cached items for key, trying the fast tier first and
// backfilling it from the durable tier on a fast miss.
func (m *Manager) Lookup(ctx context.Context, key string) ([]parse.Item, bool) {
	return m.lookup(ctx, key)
}

// Put writes a produced result through both tiers, replacing any existing
// entry wholesale.
func (m *Manager) Put(ctx context.Context, key string, items []parse.Item) {
	m.write(ctx, key, items)
}

func (m *Manager) lookup(ctx context.Context, key string) ([]parse.Item, bool) {
	if items, ok := m.lookupTier(ctx, m.fast, key); ok {
		return items, true
	}

	if m.durable == nil {
		return nil, false
	}

	items, ok := m.lookupTier(ctx, m.durable, key)
	if !ok {
		return nil, false
	}

	// Warm the fast tier for the next request
	if data, err := json.Marshal(Entry{Key: key, Items: items, CreatedAt: time.Now()}); err == nil {
		_ = m.fast.Set(ctx, key, data, m.ttl)
	}

	return items, true
}

func (m *Manager) lookupTier(ctx context.Context, tier store.KeyValueStore, key string) ([]parse.Item, bool) {
	data, found, err := tier.Get(ctx, key)
	if err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache tier read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("Cache entry corrupt, ignoring")
		return nil, false
	}

	return entry.Items, true
}

func (m *Manager) write(ctx context.Context, key string, items []parse.Item) {
	data, err := json.Marshal(Entry{Key: key, Items: items, CreatedAt: time.Now()})
	if err != nil {
		m.logger.Error().Err(err).Msg("Cache entry marshal failed")
		return
	}

	if err := m.fast.Set(ctx, key, data, m.ttl); err != nil {
		m.logger.Warn().Err(err).Str("key", key).Msg("Fast tier write failed")
	}
	if m.durable != nil {
		if err := m.durable.Set(ctx, key, data, m.ttl); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("Durable tier write failed")
		}
	}
}

// SetIdentityEntry caches an identity-scoped payload (e.g. quota status)
// with a short TTL. These entries live only in the fast tier.
func (m *Manager) SetIdentityEntry(ctx context.Context, scope, identityKey string, payload []byte) error {
	return m.fast.Set(ctx, identityPrefix+scope+":"+identityKey, payload, identityTTL)
}

// GetIdentityEntry returns a cached identity-scoped payload.
func (m *Manager) GetIdentityEntry(ctx context.Context, scope, identityKey string) ([]byte, bool) {
	data, found, err := m.fast.Get(ctx, identityPrefix+scope+":"+identityKey)
	if err != nil || !found {
		return nil, false
	}
	return data, true
}

// InvalidateIdentityEntry deletes an identity-scoped entry. Mutations to the
// underlying state call this instead of rewriting the entry
// (write-invalidate, not write-through).
func (m *Manager) InvalidateIdentityEntry(ctx context.Context, scope, identityKey string) {
	if err := m.fast.Delete(ctx, identityPrefix+scope+":"+identityKey); err != nil {
		m.logger.Warn().Err(err).Str("scope", scope).Msg("Identity cache invalidation failed")
	}
}
