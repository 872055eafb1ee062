package dashboard

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed dashboard response")

	// ErrRetriesExhausted is returned when a read call kept failing
	// transiently through the whole retry budget.
	ErrRetriesExhausted = errors.New("dashboard retries exhausted")
)

// APIError is a non-2xx response from the Dashboard API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	// RetryAfter is the server requested delay on 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashboard API %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Transient reports whether the request may succeed if retried.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RateLimited reports whether the dashboard rejected the call for exceeding
// its request rate.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err is a rate limit, a 5xx response or a
// transport failure. Decoding errors and other 4xx responses are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// retryReason labels a transient error for metrics and logs.
func retryReason(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.RateLimited() {
			return "rate_limited"
		}
		return "server_error"
	}
	return "transport"
}
