package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// retryPolicy is a capped exponential backoff that defers to the server's
// Retry-After when one was sent.
type retryPolicy struct {
	maxRetries int
	wait       time.Duration
	maxWait    time.Duration
}

func newRetryPolicy(cfg Config) retryPolicy {
	p := retryPolicy{
		maxRetries: cfg.MaxRetries,
		wait:       cfg.RetryWait,
		maxWait:    cfg.MaxRetryWait,
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.wait <= 0 {
		p.wait = time.Second
	}
	if p.maxWait < p.wait {
		p.maxWait = p.wait
	}
	return p
}

// delay returns how long to wait before retry number attempt (1-based)
// after err.
func (p retryPolicy) delay(attempt int, err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, p.maxWait)
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return p.maxWait
	}
	d := p.wait << (attempt - 1)
	if d <= 0 || d > p.maxWait {
		return p.maxWait
	}
	return d
}

// parseRetryAfter reads a Retry-After header given as seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
