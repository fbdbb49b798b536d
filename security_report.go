package goGuard

import (
	"strings"

	"github.com/MrEthical07/goGuard/internal/security"
)

// SecurityReport is a read-only snapshot of the guard's security posture,
// returned by [Guard.SecurityReport].
type SecurityReport = security.Report

// SecurityReport summarises the effective configuration and the cache tier in
// use. It never includes secrets.
func (g *Guard) SecurityReport() SecurityReport {
	if g == nil {
		return SecurityReport{}
	}

	cfg := g.config
	return security.BuildReport(security.ReportInput{
		SharedSecretSet:    cfg.Auth.SharedSecret != "",
		PublicAll:          g.deps.Evaluate.Public.MatchAll(),
		APIKeyHeader:       cfg.Auth.APIKeyHeader,
		RateLimitEnabled:   cfg.RateLimit.Enabled,
		MaxRequests:        cfg.RateLimit.MaxRequests,
		RateWindow:         cfg.RateLimit.Window,
		MaxInvalidAttempts: cfg.Abuse.MaxInvalidAttempts,
		BlockDuration:      cfg.Abuse.BlockDuration,
		SessionTTL:         cfg.Session.TTL,
		CacheBackend:       g.cache.Backend(),
		AtomicCounters:     g.cache.Atomic(),
		FailOpen:           cfg.FailureMode == FailOpen,
		JWTEnabled:         cfg.JWT.Enabled,
		SigningAlgorithm:   strings.ToUpper(string(cfg.JWT.signingMethod())),
		TrustedProxies:     len(cfg.ClientIP.TrustedProxies),
		AuditEnabled:       cfg.Audit.Enabled,
		MetricsEnabled:     cfg.Metrics.Enabled,
	})
}
