// Package testing provides test utilities and mocks for testing captiongen
// components.
package testing

import (
	"context"

	"github.com/creatorkit/captiongen/internal/provider"
)

// MockTextProvider is a mock implementation of provider.Provider for testing
// without making real API calls.
type MockTextProvider struct {
	// GenerateTextFunc is called when GenerateText() is invoked. If nil,
	// returns a default numbered-list response.
	GenerateTextFunc func(ctx context.Context, system, user string) (*provider.Response, error)

	// ModelName is the model name to return from Model()
	ModelName string

	// CallCount tracks how many times GenerateText was called
	CallCount int

	// LastSystemPrompt stores the last system prompt received
	LastSystemPrompt string

	// LastUserPrompt stores the last user prompt received
	LastUserPrompt string
}

// GenerateText implements provider.Provider.GenerateText
func (m *MockTextProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (*provider.Response, error) {
	m.CallCount++
	m.LastSystemPrompt = systemPrompt
	m.LastUserPrompt = userPrompt

	if m.GenerateTextFunc != nil {
		return m.GenerateTextFunc(ctx, systemPrompt, userPrompt)
	}

	// Default response following the numbered-item contract
	content := "1. Mock caption one {hashtags}\n" +
		"2. Mock caption two {hashtags}\n" +
		"3. Mock caption three {hashtags}\n"

	return &provider.Response{
		Content:      content,
		InputTokens:  100,
		OutputTokens: 50,
		Model:        m.Model(),
	}, nil
}

// Name implements provider.Provider.Name
func (m *MockTextProvider) Name() string {
	return "mock"
}

// Model implements provider.Provider.Model
func (m *MockTextProvider) Model() string {
	if m.ModelName == "" {
		return "mock-model-v1"
	}
	return m.ModelName
}

// ErrorProvider is a mock that always returns a fixed error (for error
// path testing).
type ErrorProvider struct {
	Err error
}

// GenerateText always returns the configured error
func (e *ErrorProvider) GenerateText(context.Context, string, string) (*provider.Response, error) {
	return nil, e.Err
}

// Name returns the error provider name
func (e *ErrorProvider) Name() string {
	return "error"
}

// Model returns the error model name
func (e *ErrorProvider) Model() string {
	return "error-model"
}

// StaticPremiumChecker classifies the configured identities as premium.
type StaticPremiumChecker struct {
	Premium map[string]bool
}

// IsPremium implements quota.PremiumChecker
func (s *StaticPremiumChecker) IsPremium(identity string) bool {
	return s.Premium[identity]
}
