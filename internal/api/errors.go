package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// Error is the failure type for one REST call. It classifies itself as
// transient (retry inside the poller) or fatal (stop immediately): HTTP 429,
// 5xx, open-breaker rejections, and transport failures are transient;
// every other 4xx is fatal.
type Error struct {
	Platform   types.Platform
	StatusCode int
	Message    string
	Body       json.RawMessage
	// Hint is the server-requested backoff from a Retry-After header.
	Hint time.Duration
	// Err is the underlying transport or breaker error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API: %s (HTTP %d)", e.Platform, e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s API: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s API: %s", e.Platform, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the poller should retry after this error.
func (e *Error) Transient() bool {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	// No HTTP status: transport failure or breaker rejection.
	return true
}

// RetryAfter returns the server-requested backoff, zero if none.
func (e *Error) RetryAfter() time.Duration { return e.Hint }

// IsNotFound reports whether err is an HTTP 404 from either platform.
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an HTTP 401 or 403.
func IsUnauthorized(err error) bool {
	return statusIs(err, http.StatusUnauthorized) || statusIs(err, http.StatusForbidden)
}

// IsRateLimited reports whether err is an HTTP 429.
func IsRateLimited(err error) bool { return statusIs(err, http.StatusTooManyRequests) }

// IsBreakerOpen reports whether the circuit breaker rejected the call
// without issuing a request.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func statusIs(err error, code int) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == code
}
