package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/keys"
)

// unknownSubject stands in for requests whose client IP could not be
// determined, so they still share one bucket instead of escaping limits.
const unknownSubject = "unknown"

// Config holds limiter tuning parameters.
type Config struct {
	RateLimitEnabled bool
	MaxRequests      int
	Window           time.Duration

	MaxInvalidAttempts int
	AttemptWindow      time.Duration
	BlockDuration      time.Duration
}

// Limiter enforces per-IP request limits and abuse blocking using cache
// counters.
type Limiter struct {
	cache  *cache.Client
	config Config
}

// New creates a [Limiter] over c.
func New(c *cache.Client, cfg Config) *Limiter {
	return &Limiter{cache: c, config: cfg}
}

// AllowRequest counts one request for ip and returns ErrRateLimited once the
// count exceeds MaxRequests. The returned count is zero when rate limiting is
// disabled.
func (l *Limiter) AllowRequest(ctx context.Context, ip string) (int64, error) {
	if !l.config.RateLimitEnabled {
		return 0, nil
	}

	count, err := l.cache.Increment(ctx, keys.RateLimit(subject(ip)), l.config.Window)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count > int64(l.config.MaxRequests) {
		return count, ErrRateLimited
	}
	return count, nil
}

// IsBlocked reports whether ip currently carries a block flag.
func (l *Limiter) IsBlocked(ctx context.Context, ip string) (bool, error) {
	blocked, err := l.cache.Flag(ctx, keys.BlockedIP(subject(ip)))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return blocked, nil
}

// RecordInvalidAttempt counts one failed credential check for ip. When the
// count reaches MaxInvalidAttempts the IP is blocked for BlockDuration and
// blocked is true.
func (l *Limiter) RecordInvalidAttempt(ctx context.Context, ip string) (blocked bool, count int64, err error) {
	s := subject(ip)

	count, err = l.cache.Increment(ctx, keys.Attempts(s), l.config.AttemptWindow)
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count < int64(l.config.MaxInvalidAttempts) {
		return false, count, nil
	}

	if err := l.cache.SetFlag(ctx, keys.BlockedIP(s), l.config.BlockDuration); err != nil {
		return false, count, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return true, count, nil
}

// InvalidAttempts returns the current invalid-attempt count for ip.
func (l *Limiter) InvalidAttempts(ctx context.Context, ip string) (int64, error) {
	n, err := l.cache.Counter(ctx, keys.Attempts(subject(ip)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n, nil
}

// Unblock clears the block flag and the invalid-attempt counter for ip.
func (l *Limiter) Unblock(ctx context.Context, ip string) error {
	s := subject(ip)
	for _, key := range []string{keys.BlockedIP(s), keys.Attempts(s)} {
		if err := l.cache.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return nil
}

func subject(ip string) string {
	if ip == "" {
		return unknownSubject
	}
	return ip
}
