// Package vault stores per-provider API keys encrypted at rest.
//
// Keys are sealed with AES-256-GCM under a key derived from a process-wide
// secret via HKDF-SHA256. Plaintext never leaves the package outside a single
// decrypt call, and every access is recorded in a capped audit trail.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/creatorkit/captiongen/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

const (
	// formatAESGCM marks entries sealed with the authenticated cipher.
	formatAESGCM = "aesgcm1"

	// formatObfuscated marks the reversible fallback encoding used when the
	// cipher key is unavailable. It is not encryption and is always logged
	// as degraded.
	formatObfuscated = "obf1"

	credentialPrefix = "credential:"
	legacyPrefix     = "credential:plain:"

	hkdfContext = "captiongen-credential-vault"
)

// keyFormats maps provider names to the shapes their API keys must match.
// An unknown provider fails format validation outright.
var keyFormats = map[string]*regexp.Regexp{
	"openai": regexp.MustCompile(`^sk-[A-Za-z0-9_-]{20,}$`),
	"claude": regexp.MustCompile(`^sk-ant-[A-Za-z0-9_-]{20,}$`),
}

// envOverrides maps provider names to environment variables that take
// precedence over stored credentials.
var envOverrides = map[string]string{
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// storedCredential is the persisted wire form of an encrypted key.
type storedCredential struct {
	Provider      string `json:"provider"`
	Ciphertext    string `json:"ciphertext"`
	Nonce         string `json:"nonce,omitempty"`
	FormatVersion string `json:"format_version"`
}

// Actor identifies who is performing a vault operation, for the capability
// check and the audit trail.
type Actor struct {
	Name   string
	Admin  bool
	Origin string
}

// Vault encrypts, stores, and serves provider API keys.
type Vault struct {
	store  store.KeyValueStore
	aead   cipher.AEAD
	audit  *AuditTrail
	logger zerolog.Logger

	lookupEnv func(string) string
}

// New creates a Vault sealing credentials under a key derived from secret.
// An empty secret leaves the vault in degraded mode: stored keys are only
// reversibly encoded, which is logged loudly rather than hidden.
func New(secret string, kv store.KeyValueStore, logger zerolog.Logger) (*Vault, error) {
	v := &Vault{
		store:     kv,
		audit:     NewAuditTrail(DefaultAuditCap),
		logger:    logger,
		lookupEnv: os.Getenv,
	}

	if secret == "" {
		logger.Warn().Msg("Vault process secret not configured, credentials will be stored with reversible encoding only")
		return v, nil
	}

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfContext))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	v.aead = aead
	return v, nil
}

// SaveKey validates, encrypts, and persists a provider API key. The caller
// must hold the administrative capability. Any legacy plaintext entry for the
// provider is discarded.
func (v *Vault) SaveKey(ctx context.Context, actor Actor, provider, plaintext string) error {
	if !actor.Admin {
		v.audit.Record(actor, "save_key", provider, false)
		return &PermissionError{Actor: actor.Name, Action: "save_key"}
	}

	if err := ValidateKeyFormat(provider, plaintext); err != nil {
		v.audit.Record(actor, "save_key", provider, false)
		return err
	}

	record, err := v.seal(provider, plaintext)
	if err != nil {
		v.audit.Record(actor, "save_key", provider, false)
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	if err := v.store.Set(ctx, credentialPrefix+provider, data, 0); err != nil {
		v.audit.Record(actor, "save_key", provider, false)
		return fmt.Errorf("persist credential: %w", err)
	}

	// Discard any legacy plaintext entry for this provider
	_ = v.store.Delete(ctx, legacyPrefix+provider)

	v.audit.Record(actor, "save_key", provider, true)
	v.logger.Info().
		Str("provider", provider).
		Str("format", record.FormatVersion).
		Msg("Credential saved")

	return nil
}

// GetKey returns the configured API key for provider, or the empty string if
// nothing is configured. Resolution order: environment override, encrypted
// entry, legacy plaintext entry (migrated transparently on read).
func (v *Vault) GetKey(ctx context.Context, actor Actor, provider string) string {
	if env := envOverrides[provider]; env != "" {
		if key := v.lookupEnv(env); key != "" {
			v.audit.Record(actor, "get_key_env", provider, true)
			return key
		}
	}

	data, found, err := v.store.Get(ctx, credentialPrefix+provider)
	if err != nil {
		v.logger.Error().Err(err).Str("provider", provider).Msg("Credential read failed")
		v.audit.Record(actor, "get_key", provider, false)
		return ""
	}

	if found {
		var record storedCredential
		if err := json.Unmarshal(data, &record); err != nil {
			v.logger.Error().Err(err).Str("provider", provider).Msg("Credential entry corrupt")
			v.audit.Record(actor, "get_key", provider, false)
			return ""
		}

		plaintext, err := v.open(record)
		if err != nil {
			v.logger.Error().Err(err).Str("provider", provider).Msg("Credential decrypt failed")
			v.audit.Record(actor, "get_key", provider, false)
			return ""
		}

		v.audit.Record(actor, "get_key", provider, true)
		return plaintext
	}

	return v.migrateLegacy(ctx, actor, provider)
}

// DeleteKey removes both the encrypted and any legacy entry for provider.
// Requires the administrative capability.
func (v *Vault) DeleteKey(ctx context.Context, actor Actor, provider string) error {
	if !actor.Admin {
		v.audit.Record(actor, "delete_key", provider, false)
		return &PermissionError{Actor: actor.Name, Action: "delete_key"}
	}

	if err := v.store.Delete(ctx, credentialPrefix+provider); err != nil {
		v.audit.Record(actor, "delete_key", provider, false)
		return fmt.Errorf("delete credential: %w", err)
	}
	_ = v.store.Delete(ctx, legacyPrefix+provider)

	v.audit.Record(actor, "delete_key", provider, true)
	v.logger.Info().Str("provider", provider).Msg("Credential deleted")
	return nil
}

// AuditEntries returns the retained audit trail, newest last.
func (v *Vault) AuditEntries() []AuditEntry {
	return v.audit.Entries()
}

// migrateLegacy reads a plaintext entry left behind by earlier releases,
// re-saves it encrypted, and deletes the plaintext copy. Running it twice is
// a no-op after the first migration: the encrypted entry wins on later reads.
func (v *Vault) migrateLegacy(ctx context.Context, actor Actor, provider string) string {
	data, found, err := v.store.Get(ctx, legacyPrefix+provider)
	if err != nil || !found {
		return ""
	}

	plaintext := string(data)

	record, err := v.seal(provider, plaintext)
	if err != nil {
		v.logger.Error().Err(err).Str("provider", provider).Msg("Legacy credential migration failed")
		return plaintext
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return plaintext
	}

	if err := v.store.Set(ctx, credentialPrefix+provider, encoded, 0); err != nil {
		v.logger.Error().Err(err).Str("provider", provider).Msg("Legacy credential re-save failed")
		return plaintext
	}
	_ = v.store.Delete(ctx, legacyPrefix+provider)

	v.audit.Record(actor, "migrate_legacy", provider, true)
	v.logger.Info().Str("provider", provider).Msg("Legacy plaintext credential migrated to encrypted storage")

	return plaintext
}

// seal encrypts plaintext with the configured cipher, or falls back to the
// marked reversible encoding when no cipher is available.
func (v *Vault) seal(provider, plaintext string) (storedCredential, error) {
	if v.aead == nil {
		v.logger.Warn().
			Str("provider", provider).
			Msg("Storing credential with reversible encoding, vault cipher unavailable")
		return storedCredential{
			Provider:      provider,
			Ciphertext:    base64.StdEncoding.EncodeToString([]byte(plaintext)),
			FormatVersion: formatObfuscated,
		}, nil
	}

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return storedCredential{}, &EncryptionError{Err: fmt.Errorf("generate nonce: %w", err)}
	}

	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), []byte(provider))

	return storedCredential{
		Provider:      provider,
		Ciphertext:    base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		FormatVersion: formatAESGCM,
	}, nil
}

// open decrypts a stored credential according to its format version.
func (v *Vault) open(record storedCredential) (string, error) {
	switch record.FormatVersion {
	case formatObfuscated:
		plaintext, err := base64.StdEncoding.DecodeString(record.Ciphertext)
		if err != nil {
			return "", fmt.Errorf("decode credential: %w", err)
		}
		return string(plaintext), nil

	case formatAESGCM:
		if v.aead == nil {
			return "", &EncryptionError{Err: fmt.Errorf("vault cipher unavailable")}
		}
		ciphertext, err := base64.StdEncoding.DecodeString(record.Ciphertext)
		if err != nil {
			return "", fmt.Errorf("decode ciphertext: %w", err)
		}
		nonce, err := base64.StdEncoding.DecodeString(record.Nonce)
		if err != nil {
			return "", fmt.Errorf("decode nonce: %w", err)
		}
		plaintext, err := v.aead.Open(nil, nonce, ciphertext, []byte(record.Provider))
		if err != nil {
			return "", &EncryptionError{Err: fmt.Errorf("decrypt credential: %w", err)}
		}
		return string(plaintext), nil

	default:
		return "", fmt.Errorf("unknown credential format %q", record.FormatVersion)
	}
}

// ValidateKeyFormat checks that plaintext matches the expected key shape for
// provider.
func ValidateKeyFormat(provider, plaintext string) error {
	pattern, known := keyFormats[provider]
	if !known {
		return &FormatError{Provider: provider, Reason: "unknown provider"}
	}
	if !pattern.MatchString(plaintext) {
		return &FormatError{Provider: provider, Reason: "key does not match expected format"}
	}
	return nil
}

// SetEnvLookup replaces the environment lookup. Used by tests.
func (v *Vault) SetEnvLookup(lookup func(string) string) {
	v.lookupEnv = lookup
}
