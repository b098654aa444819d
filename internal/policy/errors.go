package policy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrCaptcha signals a challenge page. It is terminal and never retried:
// further attempts against a challenge wall cannot succeed.
var ErrCaptcha = errors.New("captcha challenge detected")

// HTTPStatusError reports a non-2xx terminal or retryable HTTP response.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether the status is worth another attempt.
// Only 5xx and 429 qualify.
func (e *HTTPStatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// UnavailableError marks a source that could not be processed this run:
// exhausted retries, a captcha wall, or a renderer failure. One source's
// unavailability never aborts the run.
type UnavailableError struct {
	Code   string
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source %s unavailable: %s: %v", e.Code, e.Reason, e.Err)
	}
	return fmt.Sprintf("source %s unavailable: %s", e.Code, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Retryable classifies an attempt error: network errors, timeouts and
// retryable HTTP statuses qualify; captcha and client errors do not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCaptcha) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Unclassified transport failures are treated as transient.
	return true
}

// Classify maps an attempt error to its outcome for logs and metrics.
func Classify(err error) FetchOutcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, ErrCaptcha) {
		return OutcomeCaptcha
	}
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return OutcomeHTTPError
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeNetworkError
}
