package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AccessToken is a bearer token with its expiry instant.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// FreshAt reports whether the token can still be used at now, keeping margin
// of validity in reserve.
func (t AccessToken) FreshAt(now time.Time, margin time.Duration) bool {
	if t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}

// CredentialExchangeError reports a failed credential-for-token exchange.
type CredentialExchangeError struct {
	Err error
}

func (e *CredentialExchangeError) Error() string {
	return fmt.Sprintf("credential exchange failed: %v", e.Err)
}

func (e *CredentialExchangeError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the exchange failed because its deadline passed.
func (e *CredentialExchangeError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
