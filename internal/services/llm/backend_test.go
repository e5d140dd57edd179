package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"podscript/internal/prompt"
	"podscript/internal/services"
)

func TestNewBackendSelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      BackendConfig
		wantType string
		wantErr  bool
	}{
		{name: "openrouter", cfg: BackendConfig{Provider: "OpenRouter", Model: "m", APIKey: "k"}, wantType: "*llm.Client"},
		{name: "openai", cfg: BackendConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"}, wantType: "*llm.OpenAIBackend"},
		{name: "anthropic", cfg: BackendConfig{Provider: ProviderAnthropic, Model: "claude", APIKey: "k"}, wantType: "*llm.AnthropicBackend"},
		{name: "ollama", cfg: BackendConfig{Provider: ProviderOllama, Model: "llama3", BaseURL: "http://localhost:11434/v1"}, wantType: "*llm.Client"},
		{name: "missing key", cfg: BackendConfig{Provider: ProviderOpenAI, Model: "m"}, wantErr: true},
		{name: "missing model", cfg: BackendConfig{Provider: ProviderOpenRouter, APIKey: "k"}, wantErr: true},
		{name: "compatible without url", cfg: BackendConfig{Provider: ProviderOpenAICompatible, Model: "m"}, wantErr: true},
		{name: "unknown", cfg: BackendConfig{Provider: "carrier-pigeon", Model: "m", APIKey: "k"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewBackend(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got backend %T", backend)
				}
				if !errors.Is(err, services.ErrConfiguration) {
					t.Fatalf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if got := typeName(backend); got != tt.wantType {
				t.Fatalf("backend type = %s, want %s", got, tt.wantType)
			}
			if backend.Model() != tt.cfg.Model {
				t.Fatalf("model = %q, want %q", backend.Model(), tt.cfg.Model)
			}
		})
	}
}

func typeName(b Backend) string {
	switch b.(type) {
	case *Client:
		return "*llm.Client"
	case *OpenAIBackend:
		return "*llm.OpenAIBackend"
	case *AnthropicBackend:
		return "*llm.AnthropicBackend"
	default:
		return "unknown"
	}
}

func TestOpenAIBackendComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"segments\":[]}"}}]}`))
	}))
	defer server.Close()

	backend, err := NewBackend(BackendConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k", BaseURL: server.URL + "/v1"},
		WithBackendHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	content, err := backend.Complete(context.Background(), Request{System: "sys", User: "hi", Temperature: 0.5, JSONMode: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if content != `{"segments":[]}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Fatalf("unexpected model in request: %v", got["model"])
	}
	format, _ := got["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", got["response_format"])
	}
	messages, _ := got["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected system and user messages, got %v", messages)
	}
}

func TestOpenAIBackendClassifiesStatus(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantQuota     bool
		wantTransient bool
	}{
		{name: "rate limit", status: http.StatusTooManyRequests, wantQuota: true, wantTransient: true},
		{name: "server error", status: http.StatusInternalServerError, wantTransient: true},
		{name: "bad request", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test_error"}}`))
			}))
			defer server.Close()

			backend := NewOpenAIBackend(BackendConfig{Model: "m", APIKey: "k", BaseURL: server.URL + "/v1"}, server.Client())
			_, err := backend.Complete(context.Background(), Request{User: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrQuota); got != tt.wantQuota {
				t.Fatalf("quota = %v, want %v (%v)", got, tt.wantQuota, err)
			}
			if got := errors.Is(err, services.ErrTransient); got != tt.wantTransient {
				t.Fatalf("transient = %v, want %v (%v)", got, tt.wantTransient, err)
			}
		})
	}
}

func TestAnthropicBackendConcatenatesTextBlocks(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude","stop_reason":"end_turn",` +
			`"content":[{"type":"text","text":"{\"transcript\":"},{"type":"text","text":"[]}"}],` +
			`"usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer server.Close()

	backend := NewAnthropicBackend(BackendConfig{Model: "claude", APIKey: "k", BaseURL: server.URL + "/v1"}, server.Client())
	content, err := backend.Complete(context.Background(), Request{System: "sys", User: "hi", Temperature: 1})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if content != `{"transcript":[]}` {
		t.Fatalf("unexpected content %q", content)
	}
	if got["system"] != "sys" {
		t.Fatalf("expected system prompt in request, got %v", got["system"])
	}
	if max, _ := got["max_tokens"].(float64); int(max) != defaultAnthropicMaxTokens {
		t.Fatalf("expected default max_tokens, got %v", got["max_tokens"])
	}
}

func anthropicErrorBody(errType string) string {
	return `{"type":"error","error":{"type":"` + errType + `","message":"request failed"}}`
}

func TestAnthropicBackendClassifiesErrorTypes(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		errType       string
		wantQuota     bool
		wantTransient bool
		wantStatus    int
	}{
		{name: "api error", status: http.StatusInternalServerError, errType: "api_error", wantTransient: true, wantStatus: http.StatusInternalServerError},
		{name: "overloaded", status: 529, errType: "overloaded_error", wantTransient: true, wantStatus: 529},
		{name: "rate limit", status: http.StatusTooManyRequests, errType: "rate_limit_error", wantQuota: true, wantTransient: true},
		{name: "unknown type", status: http.StatusBadGateway, errType: "gateway_hiccup", wantTransient: true},
		{name: "invalid request", status: http.StatusBadRequest, errType: "invalid_request_error", wantStatus: http.StatusBadRequest},
		{name: "too large", status: http.StatusRequestEntityTooLarge, errType: "request_too_large", wantStatus: http.StatusBadRequest},
		{name: "authentication", status: http.StatusUnauthorized, errType: "authentication_error", wantStatus: http.StatusUnauthorized},
		{name: "permission", status: http.StatusForbidden, errType: "permission_error", wantStatus: http.StatusForbidden},
		{name: "not found", status: http.StatusNotFound, errType: "not_found_error", wantStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(anthropicErrorBody(tt.errType)))
			}))
			defer server.Close()

			backend := NewAnthropicBackend(BackendConfig{Model: "claude", APIKey: "k", BaseURL: server.URL + "/v1"}, server.Client())
			_, err := backend.Complete(context.Background(), Request{User: "hi"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrQuota); got != tt.wantQuota {
				t.Fatalf("quota = %v, want %v (%v)", got, tt.wantQuota, err)
			}
			if got := errors.Is(err, services.ErrTransient); got != tt.wantTransient {
				t.Fatalf("transient = %v, want %v (%v)", got, tt.wantTransient, err)
			}
			if tt.wantStatus != 0 {
				var backendErr *BackendError
				if !errors.As(err, &backendErr) || backendErr.StatusCode != tt.wantStatus {
					t.Fatalf("expected status %d, got %v", tt.wantStatus, err)
				}
			}
		})
	}
}

func TestAnthropicServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(anthropicErrorBody("api_error")))
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"claude","stop_reason":"end_turn",` +
			`"content":[{"type":"text","text":"{\"ok\":true}"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer server.Close()

	backend := NewAnthropicBackend(BackendConfig{Model: "claude", APIKey: "k", BaseURL: server.URL + "/v1"}, server.Client())
	inv := NewInvoker(backend,
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Second}),
		WithSleeper(func(time.Duration) {}),
	)
	got, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("unexpected content %q", got)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("expected one retry after the server error, got %d calls", n)
	}
}
