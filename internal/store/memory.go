package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	count     int
	expiresAt time.Time // zero means no expiry
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore is an in-process store backed by a mutex-guarded map. It serves
// as the fast cache tier and as the counter backend for quota enforcement.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Get implements KeyValueStore.Get
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.entries[key]
	if !found {
		return nil, false, nil
	}

	if entry.expired(m.now()) {
		delete(m.entries, key)
		return nil, false, nil
	}

	// Copy so callers cannot mutate the stored value
	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	return value, true, nil
}

// Set implements KeyValueStore.Set
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)

	entry := &memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}

	m.entries[key] = entry
	return nil
}

// Delete implements KeyValueStore.Delete
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// IncrementWithCeiling implements CounterStore.IncrementWithCeiling. The
// whole check-and-increment runs under the store mutex, so concurrent calls
// for the same key are linearized.
func (m *MemoryStore) IncrementWithCeiling(_ context.Context, key string, ceiling int, ttl time.Duration) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	entry, found := m.entries[key]
	if found && entry.expired(now) {
		delete(m.entries, key)
		found = false
	}

	if !found {
		entry = &memoryEntry{}
		if ttl > 0 {
			// Window starts at the first increment; later increments do not
			// extend it.
			entry.expiresAt = now.Add(ttl)
		}
		m.entries[key] = entry
	}

	if entry.count >= ceiling {
		return entry.count, false, nil
	}

	entry.count++
	return entry.count, true, nil
}

// Count implements CounterStore.Count
func (m *MemoryStore) Count(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, found := m.entries[key]
	if !found {
		return 0, nil
	}

	if entry.expired(m.now()) {
		delete(m.entries, key)
		return 0, nil
	}

	return entry.count, nil
}

// SetClock replaces the store's time source. Used by tests to step through
// TTL windows without sleeping.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = now
}
