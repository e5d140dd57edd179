package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls the OpenAI chat completions API through go-openai.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds an OpenAI backend. A non-empty BaseURL points the
// SDK at a compatible server instead of api.openai.com.
func NewOpenAIBackend(cfg BackendConfig, httpClient *http.Client) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  strings.TrimSpace(cfg.Model),
	}
}

func (b *OpenAIBackend) Name() string  { return ProviderOpenAI }
func (b *OpenAIBackend) Model() string { return b.model }

// Complete sends one chat completion request.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.User})

	chatReq := openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	for _, choice := range resp.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, nil
		}
		for _, call := range choice.Message.ToolCalls {
			if args := strings.TrimSpace(call.Function.Arguments); args != "" {
				return args, nil
			}
		}
	}
	var finish openai.FinishReason
	if len(resp.Choices) > 0 {
		finish = resp.Choices[0].FinishReason
	}
	return "", &BackendError{Provider: ProviderOpenAI, Op: "complete", Transient: true, Err: errors.Join(errEmptyContent, errors.New("finish_reason="+string(finish)))}
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return statusError(ProviderOpenAI, "chat completion", apiErr.HTTPStatusCode, 0, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return statusError(ProviderOpenAI, "chat completion", reqErr.HTTPStatusCode, 0, err)
	}
	return transportError(ProviderOpenAI, "chat completion", err)
}
