// Package llm talks to language-model providers on behalf of the episode
// generators.
//
// A Backend makes exactly one attempt per call. Three implementations exist:
//
//   - Client speaks the chat completions wire format over plain HTTP and backs
//     OpenRouter, Ollama, and other OpenAI-compatible servers.
//   - OpenAIBackend uses github.com/sashabaranov/go-openai.
//   - AnthropicBackend uses github.com/liushuangls/go-anthropic/v2.
//
// NewBackend picks one from BackendConfig.Provider and builds a proxy-aware
// HTTP client (see ResolveProxy).
//
// # Invoker
//
// Invoker owns retries. Transient failures (transport errors, HTTP 408 and
// 5xx, empty replies) and quota errors (HTTP 429) back off exponentially under
// a RetryPolicy, honouring Retry-After up to the policy cap. Context
// cancellation stops immediately. Invoke also appends JSON format instructions
// to the user prompt and strips <think> reasoning blocks from the reply.
//
// The Invoker never judges the JSON it returns; schema validation and
// amended-prompt retries belong to the caller.
//
// # Errors
//
// BackendError and QuotaError match ErrBackend and ErrQuota respectively, and
// also the services.ErrTransient / services.ErrExternalTool markers so callers
// can classify failures without importing this package.
package llm
