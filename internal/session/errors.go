package session

import "errors"

var (
	// ErrNotFound means no durable session row exists for the id.
	ErrNotFound = errors.New("session not found")
	// ErrAlreadyActive means a live connection handle already exists.
	ErrAlreadyActive = errors.New("session already active")
	// ErrSessionNotActive means the operation needs a live connection and
	// there is none.
	ErrSessionNotActive = errors.New("session not active")
)

// ProviderError wraps a failure reported by the underlying network driver.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string { return "provider: " + e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }
