package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicBackend calls the Anthropic Messages API through go-anthropic.
type AnthropicBackend struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicBackend builds an Anthropic backend.
func NewAnthropicBackend(cfg BackendConfig, httpClient *http.Client) *AnthropicBackend {
	opts := make([]anthropic.ClientOption, 0, 2)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, anthropic.WithBaseURL(base))
	}
	if httpClient != nil {
		opts = append(opts, anthropic.WithHTTPClient(httpClient))
	}
	return &AnthropicBackend{
		client: anthropic.NewClient(strings.TrimSpace(cfg.APIKey), opts...),
		model:  strings.TrimSpace(cfg.Model),
	}
}

func (b *AnthropicBackend) Name() string  { return ProviderAnthropic }
func (b *AnthropicBackend) Model() string { return b.model }

// Complete sends one Messages request and concatenates the text blocks of the
// reply. The Messages API has no JSON mode, so JSONMode is carried by the
// prompt alone.
func (b *AnthropicBackend) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temperature := float32(req.Temperature)
	resp, err := b.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(b.model),
		System:      strings.TrimSpace(req.System),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(req.User)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type != anthropic.MessagesContentTypeText || block.Text == nil {
			continue
		}
		text.WriteString(*block.Text)
	}
	content := strings.TrimSpace(text.String())
	if content == "" {
		return "", &BackendError{Provider: ProviderAnthropic, Op: "messages", Transient: true, Err: errEmptyContent}
	}
	return content, nil
}

// classifyAnthropicError maps go-anthropic errors onto the shared error types.
// The SDK drops the HTTP status for typed API errors, so the error type decides.
// Only request problems are permanent.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsRateLimitErr():
			return &QuotaError{Provider: ProviderAnthropic, Err: err}
		case apiErr.IsOverloadedErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: 529, Transient: true, Err: err}
		case apiErr.IsApiErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: http.StatusInternalServerError, Transient: true, Err: err}
		case apiErr.IsInvalidRequestErr(), apiErr.IsTooLargeErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: http.StatusBadRequest, Err: err}
		case apiErr.IsAuthenticationErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: http.StatusUnauthorized, Err: err}
		case apiErr.IsPermissionErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: http.StatusForbidden, Err: err}
		case apiErr.IsNotFoundErr():
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", StatusCode: http.StatusNotFound, Err: err}
		default:
			return &BackendError{Provider: ProviderAnthropic, Op: "messages", Transient: true, Err: err}
		}
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode > 0 {
		return statusError(ProviderAnthropic, "messages", reqErr.StatusCode, 0, err)
	}
	return transportError(ProviderAnthropic, "messages", err)
}
