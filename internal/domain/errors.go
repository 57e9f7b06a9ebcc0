package domain

import "errors"

var (
	// ErrValidation marks user input that can be corrected by re-prompting.
	ErrValidation = errors.New("validation failed")
	// ErrTransient marks integration failures worth retrying: timeouts,
	// network errors, rate limits and 5xx responses.
	ErrTransient = errors.New("transient integration failure")
	// ErrPermanent marks integration failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent integration failure")
	// ErrStoreCorrupted is fatal at startup.
	ErrStoreCorrupted = errors.New("store corrupted")

	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrLockTimeout       = errors.New("lead lock not acquired")
)

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrPermanent) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
