package goGuard

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/keys"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/session"
)

// Builder assembles a Guard. A Builder is single-use and not safe for
// concurrent use.
type Builder struct {
	config Config
	cache  *cache.Client
	redis  redis.UniversalClient

	tokenStore TokenStore
	logger     *slog.Logger
	auditSink  AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig stores a deep copy of cfg; later changes to cfg have no effect.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCache injects a ready cache client and skips tier selection. The caller
// keeps ownership: Guard.Close does not close it.
func (b *Builder) WithCache(c *cache.Client) *Builder {
	b.cache = c
	return b
}

// WithRedis supplies a ready Redis client instead of Config.Cache.RedisAddr.
// It is probed once during Build like a configured address. The caller keeps
// ownership of the client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTokenStore sets the store that resolves bearer tokens. It is required
// unless the Guard runs in open mode.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokenStore = store
	return b
}

// WithLogger sets the decision logger. The default writes JSON to stderr.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go. The sink only receives events when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms has no effect unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, opens a cache tier and returns a ready
// Guard. A Builder can be built once. Build may return an error when validation fails, the token store is missing,
// or no cache tier can be opened.
func (b *Builder) Build() (*Guard, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is Build with a caller context for the cache probe.
func (b *Builder) BuildContext(ctx context.Context) (*Guard, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Auth.SharedSecret != "" && b.tokenStore == nil {
		return nil, ErrTokenStoreRequired
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	// -------- ROUTES --------
	bypass, err := flows.NewRouteSet(cfg.Routes.Bypass)
	if err != nil {
		return nil, fmt.Errorf("bypass routes: %w", err)
	}
	publicPatterns := cfg.Routes.Public
	if cfg.Routes.PublicAll {
		publicPatterns = append(cloneStrings(publicPatterns), "*")
	}
	public, err := flows.NewRouteSet(publicPatterns)
	if err != nil {
		return nil, fmt.Errorf("public routes: %w", err)
	}
	logout, err := flows.NewRouteSet(cfg.Routes.Logout)
	if err != nil {
		return nil, fmt.Errorf("logout routes: %w", err)
	}

	// -------- CACHE --------
	cacheClient := b.cache
	ownsCache := false
	if cacheClient == nil {
		cacheClient, err = cache.Open(ctx, cache.Options{
			Mode:          cfg.Cache.Mode,
			RedisClient:   b.redis,
			RedisAddr:     cfg.Cache.RedisAddr,
			RedisPassword: cfg.Cache.RedisPassword,
			RedisDB:       cfg.Cache.RedisDB,
			RedisPrefix:   cfg.Cache.RedisPrefix,
			ProbeTimeout:  cfg.Cache.ProbeTimeout,
			MemoryEnabled: cfg.Cache.MemoryEnabled,
			Dir:           cfg.Cache.Dir,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		ownsCache = b.redis == nil || cacheClient.Backend() != string(cache.ModeRedis)
	}

	// -------- COUNTERS AND SESSIONS --------
	limiter := rate.New(cacheClient, rate.Config{
		RateLimitEnabled:   cfg.RateLimit.Enabled,
		MaxRequests:        cfg.RateLimit.MaxRequests,
		Window:             cfg.RateLimit.Window,
		MaxInvalidAttempts: cfg.Abuse.MaxInvalidAttempts,
		AttemptWindow:      cfg.Abuse.AttemptWindow,
		BlockDuration:      cfg.Abuse.BlockDuration,
	})
	sessions := session.NewStore(cacheClient, cfg.Session.TTL)

	g := &Guard{
		config:    cloneConfig(cfg),
		cache:     cacheClient,
		ownsCache: ownsCache,
		limiter:   limiter,
		sessions:  sessions,
		store:     b.tokenStore,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink, logger),
	}

	// -------- JWT --------
	var verify func(string) error
	if cfg.JWT.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: cfg.JWT.signingMethod(),
			Secret:        cloneBytes(cfg.JWT.Secret),
			PublicKey:     cloneBytes(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
		})
		if err != nil {
			g.closeResources()
			return nil, fmt.Errorf("jwt: %w", err)
		}
		verify = jm.Verify
	}

	g.deps = flows.Deps{
		Evaluate: flows.EvaluateDeps{
			Bypass:          bypass,
			Public:          public,
			Logout:          logout,
			SharedSecret:    cfg.Auth.SharedSecret,
			FailOpen:        cfg.FailureMode == FailOpen,
			Limiter:         limiter,
			RateLimited:     rate.ErrRateLimited,
			Sessions:        sessions,
			SessionNotFound: session.ErrSessionNotFound,
			SessionCorrupt:  session.ErrSessionCorrupt,
			ResolveOwner:    g.resolveOwner,
			OwnerNotFound:   ErrTokenNotFound,
			VerifyToken:     verify,
			HashToken:       keys.TokenHash,
		},
		Revoke: flows.RevokeDeps{
			Sessions:  sessions,
			HashToken: keys.TokenHash,
		},
	}
	if revoker, ok := b.tokenStore.(TokenRevoker); ok {
		g.deps.Revoke.RevokeToken = revoker.RevokeToken
	}

	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("guard configuration warning",
			slog.String("code", w.Code),
			slog.String("severity", w.Severity.String()),
			slog.String("detail", w.Message),
		)
	}

	b.built = true

	return g, nil
}
