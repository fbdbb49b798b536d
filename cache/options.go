package cache

import "time"

type backendOptions struct {
	now func() time.Time
}

// Option configures the memory and filesystem tiers.
type Option func(*backendOptions)

// WithClock replaces time.Now, mainly so tests can move past a TTL.
func WithClock(now func() time.Time) Option {
	return func(o *backendOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) backendOptions {
	o := backendOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
