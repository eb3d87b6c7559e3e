package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// MockProvider is the deterministic built-in backend. It never performs I/O:
// given the same prompts it always produces the same output, which makes the
// whole service exercisable without real credentials. It is the default
// provider for demo operation and the workhorse of the test suite.
type MockProvider struct {
	model  string
	logger zerolog.Logger
}

// NewMockProvider creates a new deterministic mock provider
func NewMockProvider(logger zerolog.Logger) *MockProvider {
	return &MockProvider{
		model:  "mock-v1",
		logger: logger,
	}
}

// mockTemplates holds three canned caption templates per tone bucket. The
// %s verb receives the content description.
var mockTemplates = map[string][3]string{
	"casual": {
		"Okay but can we talk about this: %s",
		"Just another day with %s and honestly, loving it",
		"So this happened today. %s",
	},
	"professional": {
		"Sharing a recent highlight: %s",
		"An update worth noting. %s",
		"Reflections on %s and what it means for the work ahead",
	},
	"humorous": {
		"Nobody asked, but here it is anyway: %s",
		"Plot twist: %s",
		"Me, pretending I planned this: %s",
	},
	"inspirational": {
		"Every moment counts. %s",
		"Proof that beautiful things are everywhere: %s",
		"Let this be your reminder today. %s",
	},
	"edgy": {
		"No filter needed for this one: %s",
		"Take it or leave it. %s",
		"Not for everyone, and that's the point: %s",
	},
}

const mockItemCount = 3

var (
	mockDescriptionRe = regexp.MustCompile(`(?m)^Description:\s*"(.*)"`)
	mockToneRe        = regexp.MustCompile(`(?m)^Tone:\s*([a-z-]+)`)
	mockPlatformRe    = regexp.MustCompile(`(?m)^Platform:\s*(\S+)`)
)

// GenerateText produces canned numbered captions varied by the tone named in
// the prompt, honoring the labeled-section contract for batched prompts.
func (p *MockProvider) GenerateText(_ context.Context, _ string, userPrompt string) (*Response, error) {
	description := "your content"
	if m := mockDescriptionRe.FindStringSubmatch(userPrompt); m != nil {
		description = m[1]
	}

	tone := "casual"
	if m := mockToneRe.FindStringSubmatch(userPrompt); m != nil {
		if _, known := mockTemplates[m[1]]; known {
			tone = m[1]
		}
	}

	platforms := mockPlatformRe.FindAllStringSubmatch(userPrompt, -1)

	var out strings.Builder
	if len(platforms) > 1 {
		for i, m := range platforms {
			if i > 0 {
				out.WriteString("\n")
			}
			out.WriteString(m[1] + ":\n")
			writeMockItems(&out, tone, description)
		}
	} else {
		writeMockItems(&out, tone, description)
	}

	p.logger.Debug().
		Str("tone", tone).
		Int("platforms", len(platforms)).
		Msg("Mock generation completed")

	content := out.String()
	return &Response{
		Content:      content,
		InputTokens:  len(userPrompt) / 4,
		OutputTokens: len(content) / 4,
		Model:        p.model,
	}, nil
}

func writeMockItems(out *strings.Builder, tone, description string) {
	templates := mockTemplates[tone]
	for i := 0; i < mockItemCount; i++ {
		text := fmt.Sprintf(templates[i%len(templates)], description)
		fmt.Fprintf(out, "%d. %s {hashtags}\n", i+1, text)
	}
}

// Name returns the provider identifier
func (p *MockProvider) Name() string {
	return "mock"
}

// Model returns the model identifier
func (p *MockProvider) Model() string {
	return p.model
}
