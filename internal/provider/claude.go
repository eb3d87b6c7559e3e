package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// ClaudeProvider implements the Provider interface for Anthropic's Claude API
type ClaudeProvider struct {
	client anthropic.Client
	model  string
	logger zerolog.Logger
}

// NewClaudeProvider creates a new Claude provider
func NewClaudeProvider(apiKey, model string, logger zerolog.Logger) (*ClaudeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
	)

	return &ClaudeProvider{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// GenerateText sends the prompt pair to Claude and returns the concatenated
// text blocks of the response.
func (p *ClaudeProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Text: systemPrompt,
				Type: "text",
			},
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) {
			return nil, &ProviderError{
				Provider: p.Name(),
				Status:   apierr.StatusCode,
				Message:  apierr.Error(),
			}
		}
		return nil, &NetworkError{Provider: p.Name(), Err: err}
	}

	if len(message.Content) == 0 {
		return nil, &MalformedResponseError{Provider: p.Name(), Detail: "no content blocks in response"}
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, &MalformedResponseError{Provider: p.Name(), Detail: "no text blocks in response"}
	}

	response := &Response{
		Content:      text.String(),
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
		Model:        string(message.Model),
	}

	p.logger.Debug().
		Str("model", string(message.Model)).
		Int("input_tokens", response.InputTokens).
		Int("output_tokens", response.OutputTokens).
		Str("stop_reason", string(message.StopReason)).
		Msg("Claude API request completed")

	return response, nil
}

// Name returns the provider identifier
func (p *ClaudeProvider) Name() string {
	return "claude"
}

// Model returns the model identifier
func (p *ClaudeProvider) Model() string {
	return p.model
}
