package security

import "time"

// Report is a read-only summary of a guard's security posture.
type Report struct {
	PublicMode         bool
	PublicAllRoutes    bool
	APIKeyHeader       string
	RateLimitingActive bool
	MaxRequests        int
	RateWindow         time.Duration
	MaxInvalidAttempts int
	BlockDuration      time.Duration
	SessionTTL         time.Duration
	CacheBackend       string
	AtomicCounters     bool
	FailOpen           bool
	JWTPreverify       bool
	SigningAlgorithm   string
	TrustedProxies     int
	AuditEnabled       bool
	MetricsEnabled     bool
}

type ReportInput struct {
	SharedSecretSet    bool
	PublicAll          bool
	APIKeyHeader       string
	RateLimitEnabled   bool
	MaxRequests        int
	RateWindow         time.Duration
	MaxInvalidAttempts int
	BlockDuration      time.Duration
	SessionTTL         time.Duration
	CacheBackend       string
	AtomicCounters     bool
	FailOpen           bool
	JWTEnabled         bool
	SigningAlgorithm   string
	TrustedProxies     int
	AuditEnabled       bool
	MetricsEnabled     bool
}

func BuildReport(input ReportInput) Report {
	r := Report{
		PublicMode:         !input.SharedSecretSet,
		PublicAllRoutes:    input.SharedSecretSet && input.PublicAll,
		APIKeyHeader:       input.APIKeyHeader,
		RateLimitingActive: input.SharedSecretSet && input.RateLimitEnabled && input.MaxRequests > 0 && input.RateWindow > 0,
		MaxInvalidAttempts: input.MaxInvalidAttempts,
		BlockDuration:      input.BlockDuration,
		SessionTTL:         input.SessionTTL,
		CacheBackend:       input.CacheBackend,
		AtomicCounters:     input.AtomicCounters,
		FailOpen:           input.FailOpen,
		JWTPreverify:       input.JWTEnabled,
		TrustedProxies:     input.TrustedProxies,
		AuditEnabled:       input.AuditEnabled,
		MetricsEnabled:     input.MetricsEnabled,
	}
	if r.RateLimitingActive {
		r.MaxRequests = input.MaxRequests
		r.RateWindow = input.RateWindow
	}
	if input.JWTEnabled {
		r.SigningAlgorithm = input.SigningAlgorithm
	}
	return r
}
