package github

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v69/github"
)

// ErrorType represents the categories of API failures the backup run
// reacts to differently.
type ErrorType string

const (
	// ErrorTypeRateLimit marks a primary or secondary rate limit response.
	// Never surfaced to callers; the pager absorbs it as a wait-and-retry.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeClient marks a non-rate-limit 4xx response. Ends the page
	// sequence early.
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeServer marks a 5xx response that survived the transport
	// level retries. Retried with a fixed delay.
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeTransport marks a connection-level failure or timeout.
	// Ends the page sequence early.
	ErrorTypeTransport ErrorType = "transport"
)

// Error is a classified GitHub API failure.
type Error struct {
	Type      ErrorType
	Message   string
	Resource  string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Resource, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether retrying the same request can succeed.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// wrapAPIError classifies an error returned by the go-github client.
func wrapAPIError(err error, resource string) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		if classified.Resource == "" {
			classified.Resource = resource
		}
		return classified
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &Error{
			Type:      ErrorTypeRateLimit,
			Message:   fmt.Sprintf("rate limit exceeded, resets at %v", rateErr.Rate.Reset.Time),
			Resource:  resource,
			Cause:     err,
			Retryable: true,
		}
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &Error{
			Type:      ErrorTypeRateLimit,
			Message:   "secondary rate limit exceeded",
			Resource:  resource,
			Cause:     err,
			Retryable: true,
		}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		code := respErr.Response.StatusCode
		if code >= 400 && code < 500 {
			return &Error{
				Type:     ErrorTypeClient,
				Message:  fmt.Sprintf("%d %s", code, respErr.Message),
				Resource: resource,
				Cause:    err,
			}
		}
		return &Error{
			Type:      ErrorTypeServer,
			Message:   fmt.Sprintf("%d %s", code, respErr.Message),
			Resource:  resource,
			Cause:     err,
			Retryable: true,
		}
	}

	return &Error{
		Type:     ErrorTypeTransport,
		Message:  err.Error(),
		Resource: resource,
		Cause:    err,
	}
}

// ValidationError reports an owner or repository name that fails the
// safe-name pattern and therefore must not be used in path or command
// construction.
type ValidationError struct {
	Value string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid name %q", e.Value)
}
