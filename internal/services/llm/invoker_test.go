package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"podscript/internal/prompt"
)

type scriptedReply struct {
	content string
	err     error
}

type scriptedBackend struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests []Request
}

func (b *scriptedBackend) Name() string  { return "scripted" }
func (b *scriptedBackend) Model() string { return "scripted-model" }

func (b *scriptedBackend) Complete(_ context.Context, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if len(b.replies) == 0 {
		return "", errors.New("scripted backend exhausted")
	}
	reply := b.replies[0]
	b.replies = b.replies[1:]
	return reply.content, reply.err
}

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type testSchema struct{}

func (testSchema) Name() string        { return "test" }
func (testSchema) Description() string { return `{"type": "object"}` }

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(d time.Duration) { r.delays = append(r.delays, d) }

func newTestInvoker(backend Backend, rec *sleepRecorder, opts ...InvokerOption) *Invoker {
	base := []InvokerOption{
		WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second}),
		WithSleeper(rec.sleep),
	}
	return NewInvoker(backend, append(base, opts...)...)
}

func TestInvokeAppendsFormatInstructions(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{content: `{"ok":true}`}}}
	inv := newTestInvoker(backend, &sleepRecorder{}, WithTemperature(0.3), WithMaxTokens(512), WithJSONMode(true))

	got, err := inv.Invoke(context.Background(), prompt.Rendered{System: "sys", User: "make an outline\n"}, testSchema{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != `{"ok":true}` {
		t.Fatalf("unexpected result %q", got)
	}
	req := backend.requests[0]
	if req.System != "sys" || req.Temperature != 0.3 || req.MaxTokens != 512 || !req.JSONMode {
		t.Fatalf("unexpected request %+v", req)
	}
	wantUser := "make an outline\n\n" + formatInstruction + "\n" + `{"type": "object"}`
	if req.User != wantUser {
		t.Fatalf("user prompt = %q, want %q", req.User, wantUser)
	}
}

func TestInvokeSendsSchemaOnce(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{content: "{}"}}}
	inv := newTestInvoker(backend, &sleepRecorder{})

	user := "make an outline\n\n" + testSchema{}.Description() + "\n"
	if _, err := inv.Invoke(context.Background(), prompt.Rendered{User: user}, testSchema{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	got := backend.requests[0].User
	if n := strings.Count(got, testSchema{}.Description()); n != 1 {
		t.Fatalf("schema appears %d times in %q", n, got)
	}
	if !strings.HasSuffix(got, formatInstruction) {
		t.Fatalf("expected format instruction at the end, got %q", got)
	}
}

func TestInvokeRetriesTransientWithBackoff(t *testing.T) {
	transient := &BackendError{Provider: "scripted", Op: "complete", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
	backend := &scriptedBackend{replies: []scriptedReply{{err: transient}, {err: transient}, {content: "{}"}}}
	rec := &sleepRecorder{}
	inv := newTestInvoker(backend, rec)

	got, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "{}" || backend.calls() != 3 {
		t.Fatalf("got %q after %d calls", got, backend.calls())
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second}
	if len(rec.delays) != len(want) || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
}

func TestInvokeHonoursRetryAfterUpToCap(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{err: &QuotaError{Provider: "scripted", RetryAfter: 2 * time.Second}},
		{err: &QuotaError{Provider: "scripted", RetryAfter: 5 * time.Minute}},
		{content: "{}"},
	}}
	rec := &sleepRecorder{}
	inv := newTestInvoker(backend, rec)

	if _, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{}); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(rec.delays) != 2 || rec.delays[0] != 2*time.Second || rec.delays[1] != 30*time.Second {
		t.Fatalf("delays = %v", rec.delays)
	}
}

func TestInvokeExhaustionReturnsLastTypedError(t *testing.T) {
	quota := &QuotaError{Provider: "scripted"}
	backend := &scriptedBackend{replies: []scriptedReply{{err: quota}, {err: quota}, {err: quota}, {content: "{}"}}}
	inv := newTestInvoker(backend, &sleepRecorder{})

	_, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{})
	if err == nil {
		t.Fatal("expected error")
	}
	if backend.calls() != 3 {
		t.Fatalf("expected 3 attempts, got %d", backend.calls())
	}
	if !errors.Is(err, ErrQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 3 attempt(s)") {
		t.Fatalf("expected attempt count in %q", err.Error())
	}
}

func TestInvokeDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := &BackendError{Provider: "scripted", Op: "complete", StatusCode: 401, Err: errors.New("bad key")}
	backend := &scriptedBackend{replies: []scriptedReply{{err: permanent}, {content: "{}"}}}
	rec := &sleepRecorder{}
	inv := newTestInvoker(backend, rec)

	_, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{})
	if !errors.Is(err, ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if backend.calls() != 1 || len(rec.delays) != 0 {
		t.Fatalf("expected a single attempt, got %d calls and delays %v", backend.calls(), rec.delays)
	}
}

func TestInvokeDoesNotRetryMalformedOutput(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{{content: "not json at all"}, {content: "{}"}}}
	inv := newTestInvoker(backend, &sleepRecorder{})

	got, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != "not json at all" || backend.calls() != 1 {
		t.Fatalf("expected raw reply after one call, got %q after %d", got, backend.calls())
	}
}

func TestInvokeEmptyAfterThinkingIsRetried(t *testing.T) {
	backend := &scriptedBackend{replies: []scriptedReply{
		{content: "<think>pondering forever"},
		{content: "<think>short</think>{\"ok\":true}"},
	}}
	rec := &sleepRecorder{}
	inv := newTestInvoker(backend, rec)

	got, err := inv.Invoke(context.Background(), prompt.Rendered{User: "go"}, testSchema{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got != `{"ok":true}` || backend.calls() != 2 || len(rec.delays) != 1 {
		t.Fatalf("got %q after %d calls, delays %v", got, backend.calls(), rec.delays)
	}
}

func TestInvokeStopsOnCanceledContext(t *testing.T) {
	transient := &BackendError{Provider: "scripted", Transient: true, Err: errors.New("reset")}
	backend := &scriptedBackend{replies: []scriptedReply{{err: transient}, {content: "{}"}}}
	ctx, cancel := context.WithCancel(context.Background())
	inv := newTestInvoker(backend, &sleepRecorder{}, WithSleeper(func(time.Duration) { cancel() }))

	_, err := inv.Invoke(ctx, prompt.Rendered{User: "go"}, testSchema{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls() != 1 {
		t.Fatalf("expected retries to stop after cancel, got %d calls", backend.calls())
	}
}

func TestNewInvokerClampsTemperature(t *testing.T) {
	inv := NewInvoker(&scriptedBackend{}, WithTemperature(3.5))
	if inv.Temperature() != MaxTemperature {
		t.Fatalf("expected clamp to %v, got %v", MaxTemperature, inv.Temperature())
	}
}

func TestBackoffDelay(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 6, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := policy.backoffDelay(i + 1); got != w {
			t.Fatalf("attempt %d: got %s, want %s", i+1, got, w)
		}
	}
	if (RetryPolicy{}).attempts() != 1 {
		t.Fatal("zero policy should make exactly one attempt")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		reply   scriptedReply
		wantErr bool
	}{
		{name: "plain", reply: scriptedReply{content: `{"ok":true}`}},
		{name: "fenced", reply: scriptedReply{content: "```json\n{\"ok\": true}\n```"}},
		{name: "thinking", reply: scriptedReply{content: "<think>easy</think>{\"ok\":true}"}},
		{name: "not ok", reply: scriptedReply{content: `{"ok":false}`}, wantErr: true},
		{name: "prose", reply: scriptedReply{content: "sure thing"}, wantErr: true},
		{name: "backend error", reply: scriptedReply{err: &BackendError{Provider: "scripted", StatusCode: 401}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedBackend{replies: []scriptedReply{tt.reply}}
			err := HealthCheck(context.Background(), backend)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HealthCheck err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
