package vault

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultAuditCap is the number of audit entries retained before the oldest
// are discarded.
const DefaultAuditCap = 50

// AuditEntry records a single vault access. Credential values are never
// stored here, only metadata.
type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Provider  string    `json:"provider"`
	Origin    string    `json:"origin,omitempty"`
	Success   bool      `json:"success"`
}

// AuditTrail is a fixed-capacity ring of vault access records. Once full,
// each append silently drops the oldest entry.
type AuditTrail struct {
	mu      sync.Mutex
	entries []AuditEntry
	cap     int
}

// NewAuditTrail creates a trail retaining at most capacity entries.
func NewAuditTrail(capacity int) *AuditTrail {
	if capacity <= 0 {
		capacity = DefaultAuditCap
	}
	return &AuditTrail{cap: capacity}
}

// Record appends an access record, evicting the oldest past capacity.
func (t *AuditTrail) Record(actor Actor, action, provider string, success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, AuditEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Actor:     actor.Name,
		Action:    action,
		Provider:  provider,
		Origin:    actor.Origin,
		Success:   success,
	})

	if len(t.entries) > t.cap {
		t.entries = t.entries[len(t.entries)-t.cap:]
	}
}

// Entries returns a copy of the retained records, oldest first.
func (t *AuditTrail) Entries() []AuditEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]AuditEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
