package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"podscript/internal/logging"
	"podscript/internal/services"
)

// Provider names understood by NewBackend.
const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderOpenRouter       = "openrouter"
	ProviderOllama           = "ollama"
	ProviderOpenAICompatible = "openai-compatible"
)

// Request is a single prompt sent to a backend.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	JSONMode    bool
}

// Backend is a language-model service that turns a prompt into raw text.
// Implementations make exactly one attempt per call.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
	Model() string
}

// BackendConfig selects and configures a backend.
type BackendConfig struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	Referer        string
	Title          string
	TimeoutSeconds int
	// Proxy follows config semantics: nil means discover from the
	// environment, a pointer to "" disables proxying.
	Proxy *string
}

// BackendOption customizes NewBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// WithBackendLogger sets the logger used while wiring the transport.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) { o.logger = logger }
}

// WithBackendHTTPClient replaces the proxy-aware HTTP client NewBackend would
// otherwise build.
func WithBackendHTTPClient(client *http.Client) BackendOption {
	return func(o *backendOptions) { o.httpClient = client }
}

// NewBackend builds the backend for cfg.Provider.
func NewBackend(cfg BackendConfig, opts ...BackendOption) (Backend, error) {
	options := backendOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new backend", fmt.Sprintf("%s: model required", provider), nil)
	}
	switch provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "llm", "new backend", fmt.Sprintf("%s: api key required", provider), nil)
		}
	case ProviderOllama, ProviderOpenAICompatible:
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "llm", "new backend", fmt.Sprintf("%s: base url required", provider), nil)
		}
	default:
		return nil, services.Wrap(services.ErrConfiguration, "llm", "new backend", fmt.Sprintf("unsupported provider %q", cfg.Provider), nil)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg, options.logger)
	}
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIBackend(cfg, httpClient), nil
	case ProviderAnthropic:
		return NewAnthropicBackend(cfg, httpClient), nil
	default:
		return NewClient(Config{
			Provider:       provider,
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, WithHTTPClient(httpClient))
	}
}

func newHTTPClient(cfg BackendConfig, logger *slog.Logger) *http.Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if raw := ResolveProxy(cfg.Proxy); raw != "" {
		proxyURL, err := url.Parse(raw)
		switch {
		case err != nil || proxyURL.Host == "":
			logging.WarnWithContext(logger, "ignoring unparseable proxy", "proxy_invalid",
				logging.String("proxy", RedactProxy(raw)),
				logging.String(logging.FieldErrorHint, "set [llm].proxy or PODCAST_CREATOR_PROXY to scheme://host:port"),
				logging.String(logging.FieldImpact, "model requests are sent without a proxy"),
			)
		default:
			transport.Proxy = http.ProxyURL(proxyURL)
			if logger != nil {
				logger.Debug("using proxy for model requests",
					logging.String(logging.FieldProvider, cfg.Provider),
					logging.String("proxy", RedactProxy(raw)),
				)
			}
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}
