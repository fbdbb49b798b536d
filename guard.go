package goGuard

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/internal/rate"
	"github.com/MrEthical07/goGuard/session"
)

// Guard evaluates requests against the configured authentication and abuse
// policies. Guard methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
type Guard struct {
	config Config

	cache     *cache.Client
	ownsCache bool
	limiter   *rate.Limiter
	sessions  *session.Store
	store     TokenStore

	logger  *slog.Logger
	metrics *Metrics
	audit   *auditDispatcher

	deps   flows.Deps
	closed atomic.Bool
}

// Evaluate runs the pipeline for req and returns the decision. It never
// returns an error: infrastructure failures are logged and folded into the
// decision according to Config.FailureMode.
func (g *Guard) Evaluate(ctx context.Context, req Request) Decision {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	res := flows.RunEvaluate(ctx, flows.EvaluateInput{
		Path:          req.Path,
		IP:            req.ClientIP,
		APIKey:        req.Header.Get(g.config.Auth.APIKeyHeader),
		Authorization: req.Header.Get("Authorization"),
	}, g.deps.Evaluate)

	d := Decision{
		Path:     res.Path,
		CacheHit: res.CacheHit,
	}
	switch res.Outcome {
	case flows.OutcomeBypassed:
		d.Outcome = OutcomeBypassed
	case flows.OutcomePublicMode:
		d.Outcome = OutcomePublicMode
	case flows.OutcomePublicRoute:
		d.Outcome = OutcomePublicRoute
	case flows.OutcomeAuthenticated:
		d.Outcome = OutcomeAuthenticated
		d.Identity = res.Identity
	default:
		d.Outcome = OutcomeRejected
		d.Rejection = newRejection(failureCode(res.Failure), res.Reason)
	}

	g.record(ctx, req, res, d)
	g.metrics.Observe(MetricEvaluateLatency, time.Since(start))

	return d
}

// Revoke drops the cached identity for token and revokes it in the token
// store. It reports whether a live token was revoked. Revoking an unknown
// token returns ErrTokenNotFound from the store; revoking twice returns false
// and no error.
func (g *Guard) Revoke(ctx context.Context, token string) (bool, error) {
	if g.closed.Load() {
		return false, ErrGuardClosed
	}
	if token == "" {
		return false, ErrTokenNotFound
	}

	res := flows.RunRevoke(ctx, token, g.deps.Revoke)
	err := res.Err
	if g.deps.Revoke.RevokeToken == nil {
		err = errors.Join(err, ErrRevokeUnsupported)
	}

	g.metrics.Inc(MetricRevoke)

	attrs := []slog.Attr{
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("token_hash", shortHash(res.TokenHash)),
		slog.Bool("revoked", res.Revoked),
	}
	switch {
	case errors.Is(err, ErrTokenNotFound):
		g.logger.LogAttrs(ctx, slog.LevelInfo, "revoke: token not found", attrs...)
	case err != nil:
		attrs = append(attrs, slog.String("error", err.Error()))
		g.logger.LogAttrs(ctx, slog.LevelError, "token revocation failed", attrs...)
	default:
		g.logger.LogAttrs(ctx, slog.LevelInfo, "token revoked", attrs...)
	}

	if g.audit != nil {
		ev := AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: AuditRevoked,
			RequestID: RequestIDFromContext(ctx),
			Success:   err == nil,
			Metadata:  map[string]string{"revoked": strconv.FormatBool(res.Revoked)},
		}
		if err != nil {
			ev.Error = err.Error()
		}
		g.audit.Emit(ctx, ev)
	}

	return res.Revoked, err
}

// Unblock clears the block flag and the invalid-attempt counter for ip.
func (g *Guard) Unblock(ctx context.Context, ip string) error {
	if g.closed.Load() {
		return ErrGuardClosed
	}

	err := g.limiter.Unblock(ctx, ip)
	if err != nil {
		g.logger.LogAttrs(ctx, slog.LevelError, "unblock failed",
			slog.String("ip", ip),
			slog.String("error", err.Error()),
		)
		return err
	}

	g.logger.LogAttrs(ctx, slog.LevelInfo, "ip unblocked", slog.String("ip", ip))
	if g.audit != nil {
		g.audit.Emit(ctx, AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: AuditUnblocked,
			IP:        ip,
			Success:   true,
		})
	}
	return nil
}

// Blocked reports whether ip is currently blocked.
func (g *Guard) Blocked(ctx context.Context, ip string) (bool, error) {
	return g.limiter.IsBlocked(ctx, ip)
}

// InvalidAttempts returns the invalid-attempt count for ip in the current
// window.
func (g *Guard) InvalidAttempts(ctx context.Context, ip string) (int64, error) {
	return g.limiter.InvalidAttempts(ctx, ip)
}

// Config returns a copy of the configuration the Guard was built with.
func (g *Guard) Config() Config {
	return cloneConfig(g.config)
}

// CacheBackend names the cache tier selected at startup.
func (g *Guard) CacheBackend() string {
	return g.cache.Backend()
}

// MetricsSnapshot returns the guard's counters; empty when metrics are off.
func (g *Guard) MetricsSnapshot() MetricsSnapshot {
	if g == nil {
		return MetricsSnapshot{}
	}
	return g.metrics.Snapshot()
}

// AuditDropped returns the number of audit events that never reached the
// sink, either because the buffer was full or because the sink panicked.
func (g *Guard) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped() + g.audit.SinkPanics()
}

// Close flushes pending audit events and closes the cache when the Guard
// opened it. Close is idempotent.
func (g *Guard) Close() error {
	if g == nil || g.closed.Swap(true) {
		return nil
	}
	return g.closeResources()
}

func (g *Guard) closeResources() error {
	g.audit.Close()
	if g.ownsCache {
		return g.cache.Close()
	}
	return nil
}

func (g *Guard) resolveOwner(ctx context.Context, tokenHash string) (*session.Identity, error) {
	if g.store == nil {
		return nil, ErrTokenNotFound
	}
	return g.store.FindActiveTokenOwner(ctx, tokenHash)
}

func failureCode(kind flows.FailureKind) string {
	switch kind {
	case flows.FailureRateLimited:
		return CodeRateLimited
	case flows.FailureIPBlocked:
		return CodeIPBlocked
	case flows.FailureMissingAPIKey:
		return CodeMissingAPIKey
	case flows.FailureMissingSharedSecret:
		return CodeMissingSharedSecret
	case flows.FailureInvalidAPIKey:
		return CodeInvalidAPIKey
	default:
		return CodeTokenInvalid
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
