package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAIProvider implements the Provider interface for OpenAI's chat
// completions API.
type OpenAIProvider struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model string, logger zerolog.Logger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	if model == "" {
		model = string(openai.ChatModelGPT4oMini)
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: requestTimeout}),
	)

	return &OpenAIProvider{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// GenerateText sends the prompt pair to the chat completions endpoint and
// returns the first choice's text.
func (p *OpenAIProvider) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(userPrompt),
		},
	}

	if systemPrompt != "" {
		params.Messages = append(
			[]openai.ChatCompletionMessageParamUnion{openai.SystemMessage(systemPrompt)},
			params.Messages...,
		)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			return nil, &ProviderError{
				Provider: p.Name(),
				Status:   apierr.StatusCode,
				Message:  apierr.Message,
			}
		}
		return nil, &NetworkError{Provider: p.Name(), Err: err}
	}

	if len(completion.Choices) == 0 {
		return nil, &MalformedResponseError{Provider: p.Name(), Detail: "no choices in response"}
	}

	content := completion.Choices[0].Message.Content
	if content == "" {
		return nil, &MalformedResponseError{Provider: p.Name(), Detail: "empty message content"}
	}

	response := &Response{
		Content:      content,
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
		Model:        completion.Model,
	}

	p.logger.Debug().
		Str("model", completion.Model).
		Int("input_tokens", response.InputTokens).
		Int("output_tokens", response.OutputTokens).
		Msg("OpenAI completion request completed")

	return response, nil
}

// Name returns the provider identifier
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the model identifier
func (p *OpenAIProvider) Model() string {
	return p.model
}
