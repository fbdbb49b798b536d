package goGuard

import (
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/cache"
)

func TestLint_DefaultConfigFlagsPublicMode(t *testing.T) {
	// The default config runs in open mode, which is valid but worth a warning.
	cfg := defaultConfig()
	codes := cfg.Lint().Codes()

	if !containsCode(codes, "public_mode") {
		t.Error("expected public_mode warning for an empty shared secret")
	}
	if containsCode(codes, "rate_limit_disabled") {
		t.Error("default config must not report rate_limit_disabled")
	}
	if containsCode(codes, "fail_open") {
		t.Error("default config must not report fail_open")
	}
}

func TestLint_ProductionLikeConfigHasNoHighFindings(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.SharedSecret = "a-long-enough-shared-secret"
	cfg.Cache.RedisAddr = "redis:6379"
	cfg.Audit.Enabled = true

	ws := cfg.Lint()
	if err := ws.AsError(LintWarn); err != nil {
		t.Errorf("expected no warnings, got %v", err)
	}
}

func TestLint_ShortSharedSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.SharedSecret = "short"
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "shared_secret_short") {
		t.Error("expected shared_secret_short warning")
	}
	if ws.AsError(LintHigh) == nil {
		t.Error("short shared secret must be HIGH severity")
	}
}

func TestLint_RateLimitDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.RateLimit.Enabled = false
	if !containsCode(cfg.Lint().Codes(), "rate_limit_disabled") {
		t.Error("expected rate_limit_disabled warning")
	}
}

func TestLint_FailOpen(t *testing.T) {
	cfg := defaultConfig()
	cfg.FailureMode = FailOpen
	if !containsCode(cfg.Lint().Codes(), "fail_open") {
		t.Error("expected fail_open warning")
	}
}

func TestLint_CacheTiers(t *testing.T) {
	cfg := defaultConfig()
	if !containsCode(cfg.Lint().Codes(), "memory_cache") {
		t.Error("expected memory_cache info without a redis address")
	}

	cfg.Cache.Mode = cache.ModeFilesystem
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "filesystem_cache") || containsCode(codes, "memory_cache") {
		t.Errorf("expected only filesystem_cache, got %v", codes)
	}

	cfg.Cache.Mode = cache.ModeAuto
	cfg.Cache.RedisAddr = "redis:6379"
	codes = cfg.Lint().Codes()
	if containsCode(codes, "filesystem_cache") || containsCode(codes, "memory_cache") {
		t.Errorf("redis config must not report tier warnings, got %v", codes)
	}
}

func TestLint_LongSessionTTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Session.TTL = 48 * time.Hour
	if !containsCode(cfg.Lint().Codes(), "session_ttl_long") {
		t.Error("expected session_ttl_long warning")
	}
}

func TestLint_AnyTrustedProxy(t *testing.T) {
	cfg := defaultConfig()
	cfg.ClientIP.TrustedProxies = []string{"0.0.0.0/0"}
	ws := cfg.Lint()
	for _, w := range ws {
		if w.Code == "trusted_proxy_any" && w.Severity != LintHigh {
			t.Errorf("trusted_proxy_any should be HIGH, got %s", w.Severity)
		}
	}
	if !containsCode(ws.Codes(), "trusted_proxy_any") {
		t.Error("expected trusted_proxy_any warning")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := defaultConfig()
	cfg.Auth.SharedSecret = "short"
	cfg.RateLimit.Enabled = false

	high := cfg.Lint().BySeverity(LintHigh)
	if len(high) == 0 {
		t.Fatal("expected at least one HIGH severity warning")
	}
	for _, w := range high {
		if w.Severity < LintHigh {
			t.Errorf("BySeverity(LintHigh) returned warning with severity %s", w.Severity)
		}
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
