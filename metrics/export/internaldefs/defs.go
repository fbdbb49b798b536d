package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one guard counter for exporters.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one guard histogram for exporters.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricAllowed, Name: "goguard_allowed_total", Help: "Requests authenticated with a bearer token."},
	{ID: goGuard.MetricBypassed, Name: "goguard_bypassed_total", Help: "Requests on bypass routes."},
	{ID: goGuard.MetricPublicMode, Name: "goguard_public_mode_total", Help: "Requests passed because no shared secret is configured."},
	{ID: goGuard.MetricPublicRoute, Name: "goguard_public_route_total", Help: "Requests passed on public routes."},
	{ID: goGuard.MetricRateLimited, Name: "goguard_rate_limited_total", Help: "Requests rejected by the per-IP rate limit."},
	{ID: goGuard.MetricIPBlocked, Name: "goguard_ip_blocked_total", Help: "Requests rejected because the client IP is blocked."},
	{ID: goGuard.MetricBlockIssued, Name: "goguard_block_issued_total", Help: "IP blocks issued after repeated invalid attempts."},
	{ID: goGuard.MetricMissingHeader, Name: "goguard_missing_header_total", Help: "Requests rejected for a missing API key header."},
	{ID: goGuard.MetricInvalidAPIKey, Name: "goguard_invalid_api_key_total", Help: "Requests rejected for a wrong API key."},
	{ID: goGuard.MetricTokenInvalid, Name: "goguard_token_invalid_total", Help: "Requests rejected for a missing, unknown or revoked token."},
	{ID: goGuard.MetricSessionCacheHit, Name: "goguard_session_cache_hit_total", Help: "Identities served from the session cache."},
	{ID: goGuard.MetricSessionCacheMiss, Name: "goguard_session_cache_miss_total", Help: "Identities resolved through the token store."},
	{ID: goGuard.MetricBackendError, Name: "goguard_backend_error_total", Help: "Evaluations that met a cache or token store error."},
	{ID: goGuard.MetricRevoke, Name: "goguard_revoke_total", Help: "Token revocation calls."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricEvaluateLatency, Name: "goguard_evaluate_latency_seconds", Help: "Evaluate latency histogram."},
}

// HistogramBounds are the Prometheus "le" labels of the latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are metric-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
