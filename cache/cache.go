package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// Entry is a stored value together with its remaining lifetime. TTL is zero
// when the backend cannot tell.
type Entry struct {
	Value []byte
	TTL   time.Duration
}

// Backend is one storage tier. Get reports absence through its bool result so
// a stored zero value is never mistaken for a missing key. Delete of a missing
// key is not an error.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// AtomicIncrementer is implemented by backends that can create-or-increment a
// counter without lost updates. The TTL applies only when the counter is
// created.
type AtomicIncrementer interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

const flagValue = "1"

// Client is the uniform cache surface used by the rest of the module. It is
// safe for concurrent use.
type Client struct {
	backend Backend
	incr    AtomicIncrementer
	logger  *slog.Logger

	degradedWarn rate.Sometimes
}

// NewClient wraps backend. A nil logger discards output.
func NewClient(backend Backend, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		backend:      backend,
		logger:       logger,
		degradedWarn: rate.Sometimes{First: 1, Interval: time.Minute},
	}
	if incr, ok := backend.(AtomicIncrementer); ok {
		c.incr = incr
	}
	return c
}

// Backend returns the name of the selected tier.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Atomic reports whether Increment is free of lost updates within the
// backend's sharing scope.
func (c *Client) Atomic() bool {
	return c.incr != nil
}

// Set stores value under key for ttl, replacing any existing entry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validate(key, ttl); err != nil {
		return err
	}
	if err := c.backend.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Get returns the value under key. ok is false when the key is absent or
// expired.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrInvalidKey
	}
	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if err := c.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Increment creates the counter at 1 with ttl, or adds one to an existing
// counter while keeping its current expiry. On backends without an atomic
// primitive this is a read-modify-write and concurrent callers may lose
// updates.
func (c *Client) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := validate(key, ttl); err != nil {
		return 0, err
	}

	if c.incr != nil {
		n, err := c.incr.Increment(ctx, key, ttl)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return n, nil
	}

	c.degradedWarn.Do(func() {
		c.logger.Warn("non-atomic cache increment; rate-limit accuracy degraded under concurrency",
			slog.String("backend", c.backend.Name()),
			slog.String("key", key),
		)
	})

	entry, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	var current int64
	expiry := ttl
	if ok {
		if v, perr := strconv.ParseInt(string(entry.Value), 10, 64); perr == nil && v > 0 {
			current = v
		}
		if entry.TTL > 0 {
			expiry = entry.TTL
		}
	}

	next := current + 1
	if err := c.backend.Set(ctx, key, []byte(strconv.FormatInt(next, 10)), expiry); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return next, nil
}

// Counter reads an integer counter. Absent or unparsable values read as zero.
func (c *Client) Counter(ctx context.Context, key string) (int64, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, perr := strconv.ParseInt(string(raw), 10, 64)
	if perr != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

// SetFlag stores a boolean marker under key.
func (c *Client) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	return c.Set(ctx, key, []byte(flagValue), ttl)
}

// Flag reports whether a marker set by SetFlag is present.
func (c *Client) Flag(ctx context.Context, key string) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	return string(raw) == flagValue, nil
}

// Close releases the backend.
func (c *Client) Close() error {
	if c == nil || c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

func validate(key string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
