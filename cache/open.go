package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mode selects a tier, or lets Open pick one.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeRedis      Mode = "redis"
	ModeMemory     Mode = "memory"
	ModeFilesystem Mode = "filesystem"
)

const defaultProbeTimeout = 500 * time.Millisecond

// Options drive tier selection in Open.
type Options struct {
	Mode Mode

	// RedisClient takes precedence over RedisAddr when set.
	RedisClient   redis.UniversalClient
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	ProbeTimeout  time.Duration

	// MemoryEnabled lets auto mode use the process-local tier. Disable it when
	// several worker processes serve the same clients without Redis.
	MemoryEnabled bool

	Dir string

	BackendOptions []Option
}

// Open probes the configured tiers once and returns a Client on the first
// usable one. In auto mode the order is Redis, memory, filesystem. An explicit
// mode fails when that tier cannot be opened.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}

	var backend Backend
	switch opts.Mode {
	case ModeRedis:
		rb, err := openRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		backend = rb
	case ModeMemory:
		backend = NewMemoryBackend(opts.BackendOptions...)
	case ModeFilesystem:
		fb, err := NewFilesystemBackend(opts.Dir, opts.BackendOptions...)
		if err != nil {
			return nil, err
		}
		backend = fb
	case ModeAuto:
		b, err := openAuto(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	client := NewClient(backend, logger)
	logger.Info("cache backend selected",
		slog.String("backend", backend.Name()),
		slog.Bool("atomic_increment", client.Atomic()),
	)
	if backend.Name() == string(ModeMemory) {
		logger.Warn("memory cache counters are per-process; rate limits are not shared between workers")
	}
	return client, nil
}

func openAuto(ctx context.Context, opts Options, logger *slog.Logger) (Backend, error) {
	if opts.RedisClient != nil || opts.RedisAddr != "" {
		rb, err := openRedis(ctx, opts)
		if err == nil {
			return rb, nil
		}
		logger.Warn("redis cache unavailable, falling back", slog.String("error", err.Error()))
	}

	if opts.MemoryEnabled {
		return NewMemoryBackend(opts.BackendOptions...), nil
	}

	return NewFilesystemBackend(opts.Dir, opts.BackendOptions...)
}

func openRedis(ctx context.Context, opts Options) (*RedisBackend, error) {
	client := opts.RedisClient
	owned := client == nil
	if owned {
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis address not configured", ErrBackendUnavailable)
		}
		client = redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
	}

	rb := NewRedisBackend(client, opts.RedisPrefix)

	probeCtx, cancel := context.WithTimeout(ctx, opts.ProbeTimeout)
	defer cancel()
	if err := rb.Ping(probeCtx); err != nil {
		if owned {
			_ = client.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return rb, nil
}
