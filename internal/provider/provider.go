// Package provider defines the text-generation provider abstraction and its
// implementations.
//
// The provider package defines the Provider interface and implements adapters
// for OpenAI and Anthropic Claude, plus a deterministic mock used for default
// operation and tests. Each adapter translates the canonical prompt pair into
// the provider-specific request shape and extracts the single text payload
// from the provider-specific response.
package provider

import (
	"context"
	"time"
)

// requestTimeout bounds every remote provider call. Adapters never retry;
// retry policy belongs to the caller.
const requestTimeout = 30 * time.Second

// Provider is the interface every text-generation backend implements.
// This adapter pattern allows swapping providers without touching the
// orchestration layer.
type Provider interface {
	// GenerateText sends the prompt pair to the backend and returns its raw
	// text response.
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (*Response, error)

	// Name returns the provider identifier ("openai", "claude", "mock").
	Name() string

	// Model returns the model identifier being used.
	Model() string
}

// Response contains the provider's raw text along with usage statistics.
type Response struct {
	// Content is the unparsed text returned by the model
	Content string

	// InputTokens is the number of tokens in the input, when reported
	InputTokens int

	// OutputTokens is the number of tokens in the output, when reported
	OutputTokens int

	// Model is the specific model that generated this response
	Model string
}
