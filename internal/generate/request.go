package generate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/creatorkit/captiongen/internal/quota"
)

const (
	minDescriptionLen = 10
	maxDescriptionLen = 500
	maxPlatforms      = 5
)

// knownTones is the accepted tone vocabulary. Unknown tones are rejected at
// validation, not coerced.
var knownTones = map[string]bool{
	"casual":        true,
	"professional":  true,
	"humorous":      true,
	"inspirational": true,
	"edgy":          true,
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// injectionMarkers are prompt-injection phrases that reject a description
// outright. The scan is case-insensitive.
var injectionMarkers = []string{
	"ignore previous instructions",
	"ignore all previous",
	"disregard the above",
	"system prompt",
	"you are now",
	"<script",
}

// Identity is the quota subject: an authenticated user id, or the client IP
// for anonymous callers.
type Identity struct {
	UserID string
	IP     string
}

// Key returns the stable identity string used for counter and cache keys.
func (i Identity) Key() string {
	if i.UserID != "" {
		return "user:" + i.UserID
	}
	return "ip:" + i.IP
}

// IsAnonymous reports whether the identity is IP-based.
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Request is a validated generation request.
type Request struct {
	Description string
	Tone        string
	Platforms   []string
	Identity    Identity
	Tier        quota.Tier
}

// normalize strips HTML from the description and deduplicates platforms
// while preserving order.
func (r *Request) normalize() {
	r.Description = strings.TrimSpace(htmlTagRe.ReplaceAllString(r.Description, ""))

	seen := make(map[string]bool, len(r.Platforms))
	deduped := r.Platforms[:0]
	for _, p := range r.Platforms {
		if !seen[p] {
			seen[p] = true
			deduped = append(deduped, p)
		}
	}
	r.Platforms = deduped
}

// validate checks the request against the input contract. platformLimits is
// the configured platform universe.
func (r *Request) validate(platformLimits map[string]int) error {
	length := utf8.RuneCountInString(r.Description)
	if length < minDescriptionLen {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("must be at least %d characters", minDescriptionLen),
		}
	}
	if length > maxDescriptionLen {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("must be at most %d characters", maxDescriptionLen),
		}
	}

	lowered := strings.ToLower(r.Description)
	for _, marker := range injectionMarkers {
		if strings.Contains(lowered, marker) {
			return &ValidationError{Field: "description", Message: "contains a disallowed phrase"}
		}
	}

	if !knownTones[r.Tone] {
		return &ValidationError{Field: "tone", Message: fmt.Sprintf("unknown tone %q", r.Tone)}
	}

	if len(r.Platforms) == 0 {
		return &ValidationError{Field: "platforms", Message: "at least one platform is required"}
	}
	if len(r.Platforms) > maxPlatforms {
		return &ValidationError{
			Field:   "platforms",
			Message: fmt.Sprintf("at most %d platforms per request", maxPlatforms),
		}
	}
	for _, p := range r.Platforms {
		if _, known := platformLimits[p]; !known {
			return &ValidationError{Field: "platforms", Message: fmt.Sprintf("unknown platform %q", p)}
		}
	}

	if r.Identity.UserID == "" && r.Identity.IP == "" {
		return &ValidationError{Field: "identity", Message: "missing identity"}
	}

	return nil
}
