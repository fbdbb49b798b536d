package goGuard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/cache"
)

func mapLookup(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv(mapLookup(nil))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	def := DefaultConfig()
	if cfg.RateLimit != def.RateLimit || cfg.Abuse != def.Abuse || cfg.Session != def.Session {
		t.Fatalf("empty environment must keep defaults, got %+v", cfg)
	}
}

func TestConfigFromEnvParsesEverySection(t *testing.T) {
	cfg, err := ConfigFromEnv(mapLookup(map[string]string{
		"API_KEY":              "from-env-secret",
		"API_KEY_HEADER":       "X-Service-Key",
		"RATE_LIMIT_ENABLED":   "false",
		"RATE_LIMIT_MAX":       "250",
		"RATE_LIMIT_WINDOW":    "30",
		"MAX_INVALID_ATTEMPTS": "7",
		"ATTEMPT_WINDOW":       "10m",
		"BLOCK_DURATION":       "3600",
		"SESSION_TTL":          "1h30m",
		"BYPASS_PATHS":         "/health, /metrics ,",
		"LOGOUT_PATHS":         "/auth/logout,/auth/signout",
		"CACHE_BACKEND":        "Redis",
		"REDIS_HOST":           "cache.internal",
		"REDIS_PORT":           "6380",
		"REDIS_PASSWORD":       "null",
		"REDIS_DB":             "3",
		"REDIS_PREFIX":         "app:",
		"CACHE_PROBE_TIMEOUT":  "250ms",
		"CACHE_MEMORY_ENABLED": "false",
		"CACHE_DIR":            "/var/cache/guard",
		"JWT_SECRET":           "jwt-secret",
		"JWT_LEEWAY":           "30s",
		"JWT_ISSUER":           "issuer-1",
		"TRUSTED_PROXIES":      "10.0.0.0/8,127.0.0.1",
		"FAIL_OPEN":            "true",
		"AUDIT_ENABLED":        "1",
		"METRICS_ENABLED":      "true",
	}))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg.Auth.SharedSecret != "from-env-secret" || cfg.Auth.APIKeyHeader != "X-Service-Key" {
		t.Fatalf("auth not parsed: %+v", cfg.Auth)
	}
	if cfg.RateLimit.Enabled || cfg.RateLimit.MaxRequests != 250 || cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("rate limit not parsed: %+v", cfg.RateLimit)
	}
	if cfg.Abuse.MaxInvalidAttempts != 7 || cfg.Abuse.AttemptWindow != 10*time.Minute || cfg.Abuse.BlockDuration != time.Hour {
		t.Fatalf("abuse not parsed: %+v", cfg.Abuse)
	}
	if cfg.Session.TTL != 90*time.Minute {
		t.Fatalf("session ttl not parsed: %v", cfg.Session.TTL)
	}
	if strings.Join(cfg.Routes.Bypass, "|") != "/health|/metrics" {
		t.Fatalf("bypass not parsed: %v", cfg.Routes.Bypass)
	}
	if len(cfg.Routes.Logout) != 2 {
		t.Fatalf("logout not parsed: %v", cfg.Routes.Logout)
	}
	if cfg.Cache.Mode != cache.ModeRedis || cfg.Cache.RedisAddr != "cache.internal:6380" {
		t.Fatalf("cache address not parsed: %+v", cfg.Cache)
	}
	if cfg.Cache.RedisPassword != "" {
		t.Fatalf("null password must mean none, got %q", cfg.Cache.RedisPassword)
	}
	if cfg.Cache.RedisDB != 3 || cfg.Cache.RedisPrefix != "app:" || cfg.Cache.ProbeTimeout != 250*time.Millisecond {
		t.Fatalf("cache options not parsed: %+v", cfg.Cache)
	}
	if cfg.Cache.MemoryEnabled || cfg.Cache.Dir != "/var/cache/guard" {
		t.Fatalf("cache fallbacks not parsed: %+v", cfg.Cache)
	}
	if !cfg.JWT.Enabled || string(cfg.JWT.Secret) != "jwt-secret" || cfg.JWT.Leeway != 30*time.Second || cfg.JWT.Issuer != "issuer-1" {
		t.Fatalf("jwt not parsed: %+v", cfg.JWT)
	}
	if len(cfg.ClientIP.TrustedProxies) != 2 {
		t.Fatalf("trusted proxies not parsed: %v", cfg.ClientIP.TrustedProxies)
	}
	if cfg.FailureMode != FailOpen {
		t.Fatalf("expected fail open, got %s", cfg.FailureMode)
	}
	if !cfg.Audit.Enabled || !cfg.Metrics.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("audit/metrics not parsed: %+v %+v", cfg.Audit, cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("parsed config must validate: %v", err)
	}
}

func TestConfigFromEnvPublicRoutesWildcard(t *testing.T) {
	cfg, err := ConfigFromEnv(mapLookup(map[string]string{"PUBLIC_ROUTES": "*"}))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if !cfg.Routes.PublicAll {
		t.Fatal("PUBLIC_ROUTES=* must make every route public")
	}

	cfg, err = ConfigFromEnv(mapLookup(map[string]string{"PUBLIC_ROUTES": "/a,/b"}))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Routes.PublicAll || len(cfg.Routes.Public) != 2 {
		t.Fatalf("unexpected public routes %+v", cfg.Routes)
	}
}

func TestConfigFromEnvJWTPublicKey(t *testing.T) {
	cfg, err := ConfigFromEnv(mapLookup(map[string]string{
		"JWT_PUBLIC_KEY": strings.Repeat("k", 32),
		"JWT_AUDIENCE":   "orders-api",
	}))
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if !cfg.JWT.Enabled || len(cfg.JWT.PublicKey) != 32 || cfg.JWT.Secret != nil || cfg.JWT.Audience != "orders-api" {
		t.Fatalf("jwt public key not parsed: %+v", cfg.JWT)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("raw 32-byte key must validate: %v", err)
	}
}

func TestConfigFromEnvRejectsBadValues(t *testing.T) {
	_, err := ConfigFromEnv(mapLookup(map[string]string{
		"RATE_LIMIT_MAX":  "lots",
		"BLOCK_DURATION":  "forever",
		"METRICS_ENABLED": "maybe",
	}))
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for _, name := range []string{"RATE_LIMIT_MAX", "BLOCK_DURATION", "METRICS_ENABLED"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("error must name %s: %v", name, err)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"60":    time.Minute,
		"0":     0,
		"1h":    time.Hour,
		"150ms": 150 * time.Millisecond,
	}
	for in, want := range tests {
		got, err := ParseDuration(in)
		if err != nil || got != want {
			t.Fatalf("ParseDuration(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseDuration("-5"); err == nil {
		t.Fatal("negative seconds must be rejected")
	}
}

func TestLoadConfigFromEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "RATE_LIMIT_MAX=42\nSESSION_TTL=600\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("SESSION_TTL", "20m")
	t.Setenv("RATE_LIMIT_MAX", "")
	os.Unsetenv("RATE_LIMIT_MAX")
	t.Cleanup(func() { os.Unsetenv("RATE_LIMIT_MAX") })

	cfg, err := LoadConfigFromEnv(path, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.RateLimit.MaxRequests != 42 {
		t.Fatalf("expected file value 42, got %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.Session.TTL != 20*time.Minute {
		t.Fatalf("environment must win over file, got %v", cfg.Session.TTL)
	}
}
