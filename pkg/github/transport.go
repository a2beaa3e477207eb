package github

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// transportRetries is the number of fast connection-level retries for
	// transient server errors, on top of the initial attempt.
	transportRetries = 3
	// transportBaseDelay is the delay before the first transport retry;
	// subsequent delays back off exponentially.
	transportBaseDelay = 300 * time.Millisecond
)

// retryTransport retries 500/502/503/504 responses a bounded number of
// times with exponential backoff before the application-level retry logic
// ever observes them. When all attempts fail with a server error, the last
// response is returned so callers still see the status. Connection-level
// failures are returned immediately. Every attempt runs under its own
// timeout, so retries never eat into each other's budget.
type retryTransport struct {
	base     http.RoundTripper
	attempts uint
	delay    time.Duration
	timeout  time.Duration
}

func newRetryTransport(base http.RoundTripper) *retryTransport {
	return &retryTransport{
		base:     base,
		attempts: transportRetries + 1,
		delay:    transportBaseDelay,
		timeout:  requestTimeout,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var out *http.Response

	err := retry.Do(
		func() error {
			out = nil
			attemptCtx, cancel := context.WithTimeout(req.Context(), t.timeout)
			resp, err := t.base.RoundTrip(req.WithContext(attemptCtx))
			if err != nil {
				cancel()
				return retry.Unrecoverable(err)
			}
			if !retryableStatus(resp.StatusCode) {
				// The deadline keeps running until the caller finishes
				// reading; release it when the body is closed.
				resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
				out = resp
				return nil
			}
			// Buffer the small error body so the response stays readable
			// when returned after the last attempt.
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<14))
			_ = resp.Body.Close()
			cancel()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			out = resp
			return fmt.Errorf("transient upstream error: %s", resp.Status)
		},
		retry.Attempts(t.attempts),
		retry.Delay(t.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(req.Context()),
	)
	if out != nil {
		return out, nil
	}
	return nil, err
}

// cancelOnClose ties a per-attempt deadline to the response body's
// lifetime.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	b.cancel()
	return b.ReadCloser.Close()
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
