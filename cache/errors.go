package cache

import "errors"

var (
	// ErrInvalidKey is returned for an empty key.
	ErrInvalidKey = errors.New("cache key must not be empty")
	// ErrInvalidTTL is returned when a write has no positive TTL.
	ErrInvalidTTL = errors.New("cache ttl must be > 0")
	// ErrBackendUnavailable wraps every error surfaced by a backend.
	ErrBackendUnavailable = errors.New("cache backend unavailable")
	// ErrUnknownMode is returned by Open for an unsupported Mode.
	ErrUnknownMode = errors.New("unknown cache mode")
)
