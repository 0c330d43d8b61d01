// Package nautobot provides the resilient REST client used to mirror lab
// topologies into a Nautobot inventory. The client owns authentication,
// retry with exponential backoff, and error classification; callers never
// retry on top of it.
package nautobot

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clabsync/clabsync/pkg/telemetry"
)

// conflictMarker is the body substring Nautobot uses to report duplicates.
// The server signals this inside 2xx bodies rather than via status code, so
// classification probes every response for it.
const conflictMarker = "already exists"

const maxBodyDiagnostic = 512

// Config holds client construction parameters. All retry and transport
// behavior is configured here, not per call.
type Config struct {
	// BaseURL is the API endpoint. A missing scheme is treated as http://.
	BaseURL string

	// Token is the API credential sent on every call.
	Token string

	// TLSVerify enables certificate verification. Defaults to off for
	// lab-grade deployments.
	TLSVerify bool

	// Retries is the total attempt budget per call, including the first.
	Retries int

	// BackoffFactor scales the exponential retry delay, in seconds.
	BackoffFactor float64

	// Timeout bounds each individual HTTP attempt.
	Timeout time.Duration

	// RetryStatuses is the allow-list of HTTP statuses that trigger retry.
	RetryStatuses []int

	// Proxy maps URL schemes to proxy URLs. Empty means environment proxies.
	Proxy map[string]string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		TLSVerify:     false,
		Retries:       3,
		BackoffFactor: 1.0,
		Timeout:       30 * time.Second,
		RetryStatuses: []int{429, 500, 502, 503, 504},
	}
}

// Client is a Nautobot REST API client with bounded retries and
// deterministic error classification.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	retryOn map[int]bool
	retries int
	backoff float64

	logger  *telemetry.Logger
	metrics *telemetry.Metrics
}

// NewClient creates a client from the given configuration. The logger and
// metrics collaborators may be nil.
func NewClient(cfg Config, logger *telemetry.Logger, metrics *telemetry.Metrics) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("nautobot: base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("nautobot: token is required")
	}

	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.BackoffFactor < 0 {
		cfg.BackoffFactor = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryStatuses == nil {
		cfg.RetryStatuses = []int{429, 500, 502, 503, 504}
	}
	if logger == nil {
		logger = telemetry.Discard()
	}

	retryOn := make(map[int]bool, len(cfg.RetryStatuses))
	for _, s := range cfg.RetryStatuses {
		retryOn[s] = true
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.TLSVerify},
		Proxy:           http.ProxyFromEnvironment,
	}
	if len(cfg.Proxy) > 0 {
		transport.Proxy = proxyFromMap(cfg.Proxy)
	}

	return &Client{
		baseURL: normalizeBaseURL(cfg.BaseURL),
		token:   cfg.Token,
		httpc: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		retryOn: retryOn,
		retries: cfg.Retries,
		backoff: cfg.BackoffFactor,
		logger:  logger.NewComponentLogger("nautobot"),
		metrics: metrics,
	}, nil
}

// BaseURL returns the normalized endpoint the client calls.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call issues one authenticated API call. Transport failures and statuses on
// the retry allow-list are retried with exponential backoff up to the
// configured attempt budget; every other failure is terminal and classified.
// A 204 response yields a nil Object.
func (c *Client) Call(ctx context.Context, method, path string, body any, query url.Values) (Object, error) {
	method = strings.ToUpper(method)

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, &Error{
				Class:  ClassClient,
				Method: method,
				Path:   path,
				Err:    fmt.Errorf("failed to encode request body: %w", err),
			}
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			c.metrics.RecordAPIRetry(method)
			c.logger.WithField("path", path).
				WithField("attempt", attempt).
				WithError(lastErr).
				Warn("retrying API call")

			select {
			case <-time.After(c.backoffDelay(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		obj, err := c.do(ctx, method, path, target, payload)
		if err == nil {
			c.metrics.RecordAPICall(method, "success")
			return obj, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) {
			var apiErr *Error
			if errors.As(err, &apiErr) {
				apiErr.Attempts = attempt
				c.metrics.RecordAPICall(method, string(apiErr.Class))
			}
			return nil, err
		}

		c.metrics.RecordAPICall(method, string(ClassTransient))
		lastErr = err
	}

	var apiErr *Error
	if errors.As(lastErr, &apiErr) {
		apiErr.Attempts = c.retries
	}
	return nil, lastErr
}

// do performs a single HTTP attempt and classifies the outcome.
func (c *Client) do(ctx context.Context, method, path, target string, payload []byte) (Object, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, &Error{Class: ClassClient, Method: method, Path: path, Err: err}
	}

	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &Error{Class: ClassTransient, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			Class:      ClassTransient,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return c.classify(method, path, resp.StatusCode, data)
}

// classify turns one HTTP response into a result or a classified error. It
// is the single place the conflict rule lives, so the matching can be
// hardened without touching call sites.
func (c *Client) classify(method, path string, status int, body []byte) (Object, error) {
	if bytes.Contains(body, []byte(conflictMarker)) {
		return nil, &Error{
			Class:      ClassConflict,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       truncate(body),
		}
	}

	switch {
	case status == http.StatusNoContent:
		return nil, nil

	case status >= 200 && status < 300:
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		var obj Object
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, &Error{
				Class:      ClassClient,
				Method:     method,
				Path:       path,
				StatusCode: status,
				Body:       truncate(body),
				Err:        fmt.Errorf("invalid JSON response: %w", err),
			}
		}
		return obj, nil

	case c.retryOn[status]:
		return nil, &Error{
			Class:      ClassTransient,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       truncate(body),
		}

	default:
		return nil, &Error{
			Class:      ClassClient,
			Method:     method,
			Path:       path,
			StatusCode: status,
			Body:       truncate(body),
		}
	}
}

// backoffDelay returns the wait before the nth retry: factor * 2^(n-1) seconds.
func (c *Client) backoffDelay(n int) time.Duration {
	return time.Duration(c.backoff * math.Pow(2, float64(n-1)) * float64(time.Second))
}

// normalizeBaseURL prepends http:// when the scheme is missing and strips a
// trailing slash. This is a pure string transform, not a connectivity check.
func normalizeBaseURL(u string) string {
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

// proxyFromMap resolves per-scheme proxies from the configuration map.
func proxyFromMap(proxies map[string]string) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if p, ok := proxies[req.URL.Scheme]; ok && p != "" {
			return url.Parse(p)
		}
		return nil, nil
	}
}

func truncate(body []byte) string {
	if len(body) > maxBodyDiagnostic {
		return string(body[:maxBodyDiagnostic]) + "..."
	}
	return string(body)
}
