package rate

import "errors"

var (
	// ErrRateLimited is returned when an IP has exhausted its request budget
	// for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrBackendUnavailable wraps cache failures.
	ErrBackendUnavailable = errors.New("rate backend unavailable")
)
