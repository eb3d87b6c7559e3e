package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileRecord wraps a stored value with its expiry metadata.
type fileRecord struct {
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// FileStore persists entries as JSON blobs on disk, one file per key. It is
// the durable cache tier: it survives process restarts and backs the fast
// tier when that is cold.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir. The directory is created lazily
// on the first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Get implements KeyValueStore.Get
func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var record fileRecord
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt entry is treated as a miss, not an error
		_ = os.Remove(f.pathFor(key))
		return nil, false, nil
	}

	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		_ = os.Remove(f.pathFor(key))
		return nil, false, nil
	}

	return record.Value, true, nil
}

// Set implements KeyValueStore.Set
func (f *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}

	record := fileRecord{
		Value:     value,
		CreatedAt: time.Now(),
	}
	if ttl > 0 {
		record.ExpiresAt = record.CreatedAt.Add(ttl)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return os.WriteFile(f.pathFor(key), data, 0o600)
}

// Delete implements KeyValueStore.Delete
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.pathFor(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir exposes the storage directory path.
func (f *FileStore) Dir() string {
	return f.dir
}

// pathFor hashes the key into a flat filename so arbitrary key characters
// never reach the filesystem.
func (f *FileStore) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}
