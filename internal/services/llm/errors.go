package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"podscript/internal/services"
)

var (
	// ErrBackend matches every *BackendError.
	ErrBackend = errors.New("llm backend error")
	// ErrQuota matches every *QuotaError.
	ErrQuota = errors.New("llm quota exceeded")

	errEmptyContent = errors.New("empty content")
)

// BackendError reports a failed model call. Transient errors (timeouts,
// transport failures, HTTP 408 and 5xx) are retried by the Invoker.
type BackendError struct {
	Provider   string
	Op         string
	StatusCode int
	Transient  bool
	RetryAfter time.Duration
	Err        error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("llm ")
	b.WriteString(e.Provider)
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, ": http %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrBackend:
		return true
	case services.ErrTransient:
		return e.Transient
	case services.ErrExternalTool:
		return !e.Transient
	}
	return false
}

// QuotaError reports a rate-limit response. It is always transient.
type QuotaError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *QuotaError) Error() string {
	msg := fmt.Sprintf("llm %s: rate limited", e.Provider)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *QuotaError) Unwrap() error { return e.Err }

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuota || target == services.ErrTransient
}

// statusError maps an HTTP status onto the error taxonomy: 429 is a quota
// error, 408 and 5xx are transient, every other status is permanent.
func statusError(provider, op string, status int, retryAfter time.Duration, cause error) error {
	if status == http.StatusTooManyRequests {
		return &QuotaError{Provider: provider, RetryAfter: retryAfter, Err: cause}
	}
	return &BackendError{
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Transient:  status == http.StatusRequestTimeout || status >= http.StatusInternalServerError,
		RetryAfter: retryAfter,
		Err:        cause,
	}
}

// transportError wraps a failure that happened before any HTTP status was
// received. Context cancellation is kept permanent so retries stop.
func transportError(provider, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Provider: provider, Op: op, Err: err}
	}
	transient := true
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		var opErr *net.OpError
		var dnsErr *net.DNSError
		transient = errors.As(err, &opErr) || errors.As(err, &dnsErr)
	}
	return &BackendError{Provider: provider, Op: op, Transient: transient, Err: err}
}
