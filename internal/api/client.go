// Package api implements thin REST clients for the two control planes plus
// the status fetchers that plug them into the polling core. Clients stay
// close to the wire: they authenticate, serialize, classify errors, and hand
// raw JSON payloads upward without reshaping them.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dwsmith1983/redisctl/internal/telemetry"
	"github.com/dwsmith1983/redisctl/pkg/types"
)

const defaultRequestTimeout = 30 * time.Second

// BreakerConfig tunes the per-client circuit breaker. The breaker only
// counts infrastructure failures (transport errors and 5xx responses); a 4xx
// caused by bad input never trips it.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Zero means 5.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	// Zero means 30s.
	OpenTimeout time.Duration
	// HalfOpenRequests caps probe requests while half-open. Zero means 1.
	HalfOpenRequests uint32
}

func (c BreakerConfig) normalize() BreakerConfig {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 1
	}
	return c
}

// wireResult is what one HTTP exchange yields once transport and 5xx
// failures have been separated out for the breaker.
type wireResult struct {
	status     int
	body       []byte
	retryAfter time.Duration
}

// restClient is the shared do-path under both platform clients.
type restClient struct {
	platform types.Platform
	base     string
	hc       *http.Client
	// authorize mutates each outbound request with the platform's scheme:
	// header pair for Cloud, basic auth for Enterprise.
	authorize func(*http.Request)
	breaker   *gobreaker.CircuitBreaker[wireResult]
	logger    *slog.Logger
}

func newRESTClient(platform types.Platform, base string, insecure bool, authorize func(*http.Request), bc BreakerConfig, logger *slog.Logger) *restClient {
	bc = bc.normalize()
	transport := http.DefaultTransport
	if insecure {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		transport = t
	}
	c := &restClient{
		platform:  platform,
		base:      strings.TrimRight(base, "/"),
		hc:        &http.Client{Transport: transport, Timeout: defaultRequestTimeout},
		authorize: authorize,
		logger:    logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[wireResult](gobreaker.Settings{
		Name:        string(platform),
		MaxRequests: bc.HalfOpenRequests,
		Timeout:     bc.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "platform", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// do performs one request and returns the response body. Non-2xx statuses
// come back as *Error; transport failures and breaker rejections come back
// as transient *Error with no status code.
func (c *restClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	ctx, span := telemetry.StartSpan(ctx, fmt.Sprintf("%s %s", method, path))
	defer span.End()
	span.SetAttributes(
		attribute.String("platform", string(c.platform)),
		attribute.String("http.method", method),
	)
	telemetry.APIRequests.Add(ctx, 1)

	var payload []byte
	switch b := body.(type) {
	case nil:
	case json.RawMessage:
		payload = b
	case []byte:
		payload = b
	default:
		var err error
		payload, err = json.Marshal(b)
		if err != nil {
			return nil, &Error{Platform: c.platform, Message: "encoding request body", Err: err}
		}
	}

	res, err := c.breaker.Execute(func() (wireResult, error) {
		return c.exchange(ctx, method, path, payload)
	})
	if err != nil {
		telemetry.APIRequestErrors.Add(ctx, 1)
		var apiErr *Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		// Breaker rejection or transport failure.
		return nil, &Error{Platform: c.platform, Message: "request not sent", Err: err}
	}

	if res.status < 200 || res.status > 299 {
		telemetry.APIRequestErrors.Add(ctx, 1)
		return nil, &Error{
			Platform:   c.platform,
			StatusCode: res.status,
			Message:    httpMessage(res.status, res.body),
			Body:       res.body,
			Hint:       res.retryAfter,
		}
	}
	return res.body, nil
}

// exchange runs inside the breaker. It returns an error only for transport
// failures and 5xx responses so the breaker trips on infrastructure trouble,
// not on caller mistakes.
func (c *restClient) exchange(ctx context.Context, method, path string, payload []byte) (wireResult, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return wireResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return wireResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return wireResult{}, err
	}
	c.logger.Debug("request completed",
		"method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	res := wireResult{
		status:     resp.StatusCode,
		body:       body,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	if resp.StatusCode >= 500 {
		return res, &Error{
			Platform:   c.platform,
			StatusCode: resp.StatusCode,
			Message:    httpMessage(resp.StatusCode, body),
			Body:       body,
			Hint:       res.retryAfter,
		}
	}
	return res, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// httpMessage pulls a short message out of an error response body, falling
// back to the status text.
func httpMessage(status int, body []byte) string {
	var doc struct {
		Description string `json:"description"`
		Message     string `json:"message"`
		Detail      string `json:"detail"`
		ErrorField  string `json:"error"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		for _, m := range []string{doc.Description, doc.Message, doc.Detail, doc.ErrorField} {
			if m != "" {
				return m
			}
		}
	}
	return http.StatusText(status)
}
