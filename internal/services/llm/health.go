package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	healthSystemPrompt = "You are a connectivity probe. Follow the instruction exactly."
	healthUserPrompt   = `Reply with the JSON object {"ok": true} and nothing else.`
)

// HealthCheck makes one round trip to backend and expects {"ok": true} back.
// It does not retry.
func HealthCheck(ctx context.Context, backend Backend) error {
	if backend == nil {
		return fmt.Errorf("llm health check: backend not configured")
	}
	raw, err := backend.Complete(ctx, Request{
		System:    healthSystemPrompt,
		User:      healthUserPrompt,
		MaxTokens: 32,
	})
	if err != nil {
		return fmt.Errorf("llm health check %s: %w", backend.Name(), err)
	}
	_, cleaned := ParseThinking(raw)
	start := strings.IndexByte(cleaned, '{')
	end := strings.LastIndexByte(cleaned, '}')
	if start < 0 || end < start {
		return fmt.Errorf("llm health check %s: unexpected reply %q", backend.Name(), summarizePayloadSnippet(cleaned))
	}
	var reply struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &reply); err != nil {
		return fmt.Errorf("llm health check %s: decode reply: %w", backend.Name(), err)
	}
	if !reply.OK {
		return fmt.Errorf("llm health check %s: model did not confirm", backend.Name())
	}
	return nil
}
