package relay

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"push-relay/metrics"
	"push-relay/tokens"
)

// InvalidRequestError is a local validation failure. It is never retried.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// ProviderError is a non-2xx, unreadable or unparsable response from FCM, or
// a transport failure reaching it (StatusCode 0).
type ProviderError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("provider request failed: %v", e.Err)
	}
	body := strings.TrimSpace(e.Body)
	if e.Err != nil {
		return fmt.Sprintf("provider returned status %d with unreadable body: %v: %s", e.StatusCode, e.Err, body)
	}
	if body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a network call exceeded its bound.
type TimeoutError struct {
	Op    string
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a failed send may succeed if attempted again.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var invalid *InvalidRequestError
	if errors.As(err, &invalid) {
		return false
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	var cred *tokens.CredentialExchangeError
	if errors.As(err, &cred) {
		return true
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.StatusCode == 0 ||
			perr.StatusCode == http.StatusTooManyRequests ||
			perr.StatusCode >= 500
	}
	return false
}

func outcome(err error) string {
	var (
		invalid *InvalidRequestError
		timeout *TimeoutError
		cred    *tokens.CredentialExchangeError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &invalid):
		return metrics.OutcomeInvalidRequest
	case errors.As(err, &timeout):
		return metrics.OutcomeTimeout
	case errors.As(err, &cred):
		return metrics.OutcomeCredentialError
	default:
		return metrics.OutcomeProviderError
	}
}
