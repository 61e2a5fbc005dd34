package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ClassifyHTTPStatus converts a non-2xx collaborator response into a typed
// failure. Timeouts, throttling and server errors are transient; any other
// status is a contract failure that retrying will not fix.
func ClassifyHTTPStatus(component, operation string, status int, retryAfter time.Duration) error {
	cause := fmt.Errorf("http %d", status)
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return markRetryAfter(Transient(ReasonTimeout, component, operation, "collaborator timed out", cause), retryAfter)
	case status == http.StatusTooManyRequests:
		return markRetryAfter(Transient(ReasonRateLimited, component, operation, "collaborator rate limited the request", cause), retryAfter)
	case status >= http.StatusInternalServerError:
		return markRetryAfter(Transient(ReasonUnavailable, component, operation, "collaborator unavailable", cause), retryAfter)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return Wrap(ErrConfiguration, component, operation, "collaborator rejected credentials", cause)
	default:
		return Wrap(ErrContract, component, operation, "collaborator rejected the request", cause)
	}
}

// ClassifyTransportError converts an HTTP transport failure into a typed
// failure. Caller cancellation is returned unchanged.
func ClassifyTransportError(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(ReasonTimeout, component, operation, "collaborator call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(ReasonTimeout, component, operation, "collaborator call timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return Transient(ReasonUnavailable, component, operation, "collaborator unreachable", err)
	}
	return Transient(ReasonUnavailable, component, operation, "collaborator call failed", err)
}

// ParseRetryAfter interprets a Retry-After header as either delta seconds or
// an HTTP date.
func ParseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func markRetryAfter(err error, retryAfter time.Duration) error {
	var svcErr *Error
	if retryAfter > 0 && errors.As(err, &svcErr) {
		svcErr.RetryAfter = retryAfter
	}
	return err
}
