package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAuthenticationFailed covers rejected provider credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrServiceUnavailable is returned when the circuit breaker is open
	// or a scheduled job could not be initialized.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrInvalidToken means the provider rejected the account token.
	// Callers must emit an authentication-required event before surfacing it.
	ErrInvalidToken = errors.New("invalid token")

	// ErrAccountNotFound is returned when a sync targets an unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

// RateLimitError reports a rejected call together with the wait until
// the endpoint's bucket refills.
type RateLimitError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %ds", e.Endpoint, int(e.RetryAfter.Seconds()))
}

// AsRateLimit unwraps a RateLimitError if err carries one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}
