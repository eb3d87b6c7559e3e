package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/creatorkit/captiongen/internal/store"
	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func adminActor() Actor {
	return Actor{Name: "admin", Admin: true, Origin: "test"}
}

func newTestVault(t *testing.T) (*Vault, *store.MemoryStore) {
	t.Helper()

	kv := store.NewMemoryStore()
	v, err := New("test-process-secret", kv, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// No environment overrides during tests
	v.SetEnvLookup(func(string) string { return "" })
	return v, kv
}

const validOpenAIKey = "sk-abcdefghijklmnopqrstuvwxyz123456"

func TestVault_RoundTrip(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey); err != nil {
		t.Fatalf("SaveKey failed: %v", err)
	}

	got := v.GetKey(ctx, adminActor(), "openai")
	if got != validOpenAIKey {
		t.Errorf("Expected original key back, got %q", got)
	}
}

func TestVault_GetKeyUnconfigured(t *testing.T) {
	v, _ := newTestVault(t)

	got := v.GetKey(context.Background(), adminActor(), "openai")
	if got != "" {
		t.Errorf("Expected empty string for unconfigured provider, got %q", got)
	}
}

func TestVault_CiphertextNotPlaintext(t *testing.T) {
	v, kv := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey); err != nil {
		t.Fatalf("SaveKey failed: %v", err)
	}

	data, found, err := kv.Get(ctx, "credential:openai")
	if err != nil || !found {
		t.Fatalf("Expected stored credential entry, found=%v err=%v", found, err)
	}

	if strings.Contains(string(data), validOpenAIKey) {
		t.Error("Stored entry must not contain the plaintext key")
	}

	var record struct {
		FormatVersion string `json:"format_version"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("Stored entry is not valid JSON: %v", err)
	}
	if record.FormatVersion != "aesgcm1" {
		t.Errorf("Expected aesgcm1 format, got %q", record.FormatVersion)
	}
}

func TestVault_SaveKeyFormatValidation(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		provider string
		key      string
	}{
		{"too short", "openai", "sk-short"},
		{"missing prefix", "openai", "abcdefghijklmnopqrstuvwxyz123456"},
		{"wrong prefix for claude", "claude", validOpenAIKey},
		{"unknown provider", "gemini", validOpenAIKey},
		{"empty key", "openai", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.SaveKey(ctx, adminActor(), tt.provider, tt.key)
			if err == nil {
				t.Fatal("Expected format error, got nil")
			}
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Errorf("Expected *FormatError, got %T: %v", err, err)
			}
		})
	}
}

func TestVault_SaveKeyRequiresAdmin(t *testing.T) {
	v, _ := newTestVault(t)

	err := v.SaveKey(context.Background(), Actor{Name: "guest"}, "openai", validOpenAIKey)
	if err == nil {
		t.Fatal("Expected permission error, got nil")
	}
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("Expected *PermissionError, got %T: %v", err, err)
	}
}

func TestVault_DeleteKey(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey); err != nil {
		t.Fatalf("SaveKey failed: %v", err)
	}
	if err := v.DeleteKey(ctx, adminActor(), "openai"); err != nil {
		t.Fatalf("DeleteKey failed: %v", err)
	}

	if got := v.GetKey(ctx, adminActor(), "openai"); got != "" {
		t.Errorf("Expected empty key after delete, got %q", got)
	}
}

func TestVault_DeleteKeyRequiresAdmin(t *testing.T) {
	v, _ := newTestVault(t)

	err := v.DeleteKey(context.Background(), Actor{Name: "guest"}, "openai")
	var permErr *PermissionError
	if !errors.As(err, &permErr) {
		t.Errorf("Expected *PermissionError, got %T: %v", err, err)
	}
}

func TestVault_EnvOverrideWins(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey); err != nil {
		t.Fatalf("SaveKey failed: %v", err)
	}

	v.SetEnvLookup(func(name string) string {
		if name == "OPENAI_API_KEY" {
			return "sk-envoverridekey9876543210abcdef"
		}
		return ""
	})

	got := v.GetKey(ctx, adminActor(), "openai")
	if got != "sk-envoverridekey9876543210abcdef" {
		t.Errorf("Expected env override to win, got %q", got)
	}
}

func TestVault_LegacyPlaintextMigration(t *testing.T) {
	v, kv := newTestVault(t)
	ctx := context.Background()

	// Simulate an entry written by an earlier release, before encryption
	if err := kv.Set(ctx, "credential:plain:openai", []byte(validOpenAIKey), 0); err != nil {
		t.Fatalf("seed legacy entry: %v", err)
	}

	got := v.GetKey(ctx, adminActor(), "openai")
	if got != validOpenAIKey {
		t.Fatalf("Expected legacy key returned, got %q", got)
	}

	// The plaintext entry must be gone and replaced by an encrypted one
	if _, found, _ := kv.Get(ctx, "credential:plain:openai"); found {
		t.Error("Legacy plaintext entry should have been deleted")
	}
	data, found, _ := kv.Get(ctx, "credential:openai")
	if !found {
		t.Fatal("Expected migrated encrypted entry")
	}
	if strings.Contains(string(data), validOpenAIKey) {
		t.Error("Migrated entry must not contain plaintext")
	}

	// Second read is a plain decrypt, no further side effects
	if got := v.GetKey(ctx, adminActor(), "openai"); got != validOpenAIKey {
		t.Errorf("Expected migrated key on second read, got %q", got)
	}
}

func TestVault_DegradedModeWithoutSecret(t *testing.T) {
	kv := store.NewMemoryStore()
	v, err := New("", kv, testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	v.SetEnvLookup(func(string) string { return "" })
	ctx := context.Background()

	if err := v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey); err != nil {
		t.Fatalf("SaveKey in degraded mode failed: %v", err)
	}

	data, _, _ := kv.Get(ctx, "credential:openai")
	var record struct {
		FormatVersion string `json:"format_version"`
	}
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal stored record: %v", err)
	}
	if record.FormatVersion != "obf1" {
		t.Errorf("Expected obf1 marker in degraded mode, got %q", record.FormatVersion)
	}

	if got := v.GetKey(ctx, adminActor(), "openai"); got != validOpenAIKey {
		t.Errorf("Expected round-trip in degraded mode, got %q", got)
	}
}

func TestAuditTrail_RecordsAndCaps(t *testing.T) {
	trail := NewAuditTrail(3)

	for i := 0; i < 5; i++ {
		trail.Record(Actor{Name: fmt.Sprintf("actor-%d", i)}, "get_key", "openai", true)
	}

	entries := trail.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 retained entries, got %d", len(entries))
	}
	// Oldest two were silently discarded
	if entries[0].Actor != "actor-2" {
		t.Errorf("Expected oldest retained entry from actor-2, got %s", entries[0].Actor)
	}
	if entries[2].Actor != "actor-4" {
		t.Errorf("Expected newest entry from actor-4, got %s", entries[2].Actor)
	}

	for _, e := range entries {
		if e.ID == "" {
			t.Error("Expected audit entry to carry an id")
		}
		if e.Timestamp.IsZero() {
			t.Error("Expected audit entry to carry a timestamp")
		}
	}
}

func TestVault_AccessesAreAudited(t *testing.T) {
	v, _ := newTestVault(t)
	ctx := context.Background()

	_ = v.SaveKey(ctx, adminActor(), "openai", validOpenAIKey)
	_ = v.GetKey(ctx, adminActor(), "openai")
	_ = v.SaveKey(ctx, Actor{Name: "guest"}, "openai", validOpenAIKey) // denied

	entries := v.AuditEntries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 audit entries, got %d", len(entries))
	}
	if !entries[0].Success || entries[0].Action != "save_key" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[2].Success {
		t.Error("Denied save should be recorded as failure")
	}
}
