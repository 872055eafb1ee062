// Package dashboard is a client for the cloud network Dashboard API v1: the
// network list, network event logs, client lookups and client policies.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/leasetrace/pkg/models"
)

// endingBeforeLayout is the timestamp format the events endpoint accepts.
const endingBeforeLayout = "2006-01-02T15:04:05.000000Z"

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// Client wraps the Dashboard REST API v1.
// Read calls are retried on rate limiting and transient failures; policy
// updates are issued exactly once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	retry      retryPolicy
	metrics    *Metrics
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a new Dashboard API client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(limit, burst),
		retry:      newRetryPolicy(cfg),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListNetworks returns every network in the organization, following
// pagination links.
func (c *Client) ListNetworks(ctx context.Context, orgID string) ([]models.Network, error) {
	next := c.baseURL + fmt.Sprintf("/organizations/%s/networks?perPage=1000", url.PathEscape(orgID))
	seen := make(map[string]bool)

	var networks []models.Network
	for next != "" && !seen[next] {
		seen[next] = true

		var page []models.Network
		header, err := c.getJSON(ctx, "list_networks", next, &page)
		if err != nil {
			return nil, fmt.Errorf("list networks for org %s: %w", orgID, err)
		}
		networks = append(networks, page...)
		next = parseLinks(header.Get("Link"))["next"]
	}

	c.logger.Debug("networks listed", zap.String("org_id", orgID), zap.Int("count", len(networks)))
	return networks, nil
}

// ListEvents returns one page of a network's event log, holding events
// strictly before q.EndingBefore, newest first.
func (c *Client) ListEvents(ctx context.Context, q EventQuery) (*EventPage, error) {
	params := url.Values{}
	if q.ProductType != "" {
		params.Set("productType", q.ProductType)
	}
	for _, t := range q.EventTypes {
		params.Add("includedEventTypes[]", t)
	}
	if q.PerPage > 0 {
		params.Set("perPage", strconv.Itoa(q.PerPage))
	}
	if !q.EndingBefore.IsZero() {
		params.Set("endingBefore", q.EndingBefore.UTC().Format(endingBeforeLayout))
	}

	target := c.baseURL + fmt.Sprintf("/networks/%s/events", url.PathEscape(q.NetworkID))
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var resp eventsResponse
	header, err := c.getJSON(ctx, "list_events", target, &resp)
	if err != nil {
		return nil, fmt.Errorf("list events for network %s: %w", q.NetworkID, err)
	}

	page := &EventPage{
		Events:      resp.Events,
		PageStartAt: parseOptionalTime(resp.PageStartAt),
		PageEndAt:   parseOptionalTime(resp.PageEndAt),
	}
	if link := header.Get("Link"); link != "" {
		_, page.HasMore = parseLinks(link)["prev"]
	} else {
		page.HasMore = q.PerPage > 0 && len(resp.Events) >= q.PerPage
	}
	return page, nil
}

// GetClient returns the detail of one client on a network.
func (c *Client) GetClient(ctx context.Context, networkID, clientID string) (models.ClientDetail, error) {
	target := c.baseURL + fmt.Sprintf("/networks/%s/clients/%s", url.PathEscape(networkID), url.PathEscape(clientID))

	var resp apiClient
	if _, err := c.getJSON(ctx, "get_client", target, &resp); err != nil {
		return models.ClientDetail{}, fmt.Errorf("get client %s: %w", clientID, err)
	}
	return resp.detail(), nil
}

// SetClientPolicy applies a device policy to a client. The call is never
// retried.
func (c *Client) SetClientPolicy(ctx context.Context, networkID, clientID string, policy models.DevicePolicy) (*PolicyResult, error) {
	target := c.baseURL + fmt.Sprintf("/networks/%s/clients/%s/policy", url.PathEscape(networkID), url.PathEscape(clientID))

	var result PolicyResult
	if _, err := c.doJSON(ctx, "set_client_policy", http.MethodPut, target, policyRequest{DevicePolicy: string(policy)}, &result); err != nil {
		return nil, fmt.Errorf("set policy %q on client %s: %w", policy, clientID, err)
	}
	return &result, nil
}

// getJSON performs a GET with the retry budget applied.
func (c *Client) getJSON(ctx context.Context, op, target string, result any) (http.Header, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retry.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.retry.delay(attempt, lastErr)
			reason := retryReason(lastErr)
			c.metrics.retry(op, reason)
			c.logger.Warn("dashboard request failed, retrying",
				zap.String("operation", op),
				zap.Int("attempt", attempt+1),
				zap.String("reason", reason),
				zap.Duration("backoff", wait),
				zap.Error(lastErr),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}
		}

		header, err := c.doJSON(ctx, op, http.MethodGet, target, nil, result)
		if err == nil {
			return header, nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, c.retry.maxRetries+1, lastErr)
}

// doJSON performs one HTTP request with JSON serialization/deserialization.
func (c *Client) doJSON(ctx context.Context, op, method, target string, body, result any) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reqBody io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	path := req.URL.Path

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(op, "error", time.Since(start))
		return nil, fmt.Errorf("http %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.metrics.observe(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	c.logger.Debug("dashboard request",
		zap.String("operation", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrMalformedResponse, method, path, err)
		}
	}
	return resp.Header, nil
}

// IsNotFound reports whether err is a 404 from the Dashboard API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
