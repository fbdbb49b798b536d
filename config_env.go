package goGuard

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrEthical07/goGuard/cache"
)

// LoadConfigFromEnv loads the given .env files (".env" when none are named)
// and builds a Config from the process environment on top of DefaultConfig.
// Missing files are skipped. Variables already set in the environment win
// over file values.
func LoadConfigFromEnv(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("env file %s: %w", f, err)
		}
		existing = append(existing, f)
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return Config{}, fmt.Errorf("load env files: %w", err)
		}
	}

	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv builds a Config from variables returned by lookup. Durations
// accept Go syntax ("90s") or a plain number of seconds. List variables are
// comma separated.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := defaultConfig()
	p := envParser{lookup: lookup}

	// AUTH
	p.str("API_KEY", &cfg.Auth.SharedSecret)
	p.str("API_KEY_HEADER", &cfg.Auth.APIKeyHeader)

	// RATE LIMIT / ABUSE
	p.boolean("RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled)
	p.int("RATE_LIMIT_MAX", &cfg.RateLimit.MaxRequests)
	p.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	p.int("MAX_INVALID_ATTEMPTS", &cfg.Abuse.MaxInvalidAttempts)
	p.duration("ATTEMPT_WINDOW", &cfg.Abuse.AttemptWindow)
	p.duration("BLOCK_DURATION", &cfg.Abuse.BlockDuration)

	// SESSION / ROUTES
	p.duration("SESSION_TTL", &cfg.Session.TTL)
	p.list("BYPASS_PATHS", &cfg.Routes.Bypass)
	p.list("LOGOUT_PATHS", &cfg.Routes.Logout)
	if routes, ok := p.get("PUBLIC_ROUTES"); ok {
		cfg.Routes.Public = splitList(routes)
		cfg.Routes.PublicAll = false
		for _, r := range cfg.Routes.Public {
			if r == "*" {
				cfg.Routes.PublicAll = true
			}
		}
	}

	// CACHE
	if mode, ok := p.get("CACHE_BACKEND"); ok {
		cfg.Cache.Mode = cache.Mode(strings.ToLower(mode))
	}
	if host, ok := p.get("REDIS_HOST"); ok {
		port := "6379"
		p.str("REDIS_PORT", &port)
		cfg.Cache.RedisAddr = net.JoinHostPort(host, port)
	}
	if pw, ok := p.get("REDIS_PASSWORD"); ok && !strings.EqualFold(pw, "null") {
		cfg.Cache.RedisPassword = pw
	}
	p.int("REDIS_DB", &cfg.Cache.RedisDB)
	p.str("REDIS_PREFIX", &cfg.Cache.RedisPrefix)
	p.duration("CACHE_PROBE_TIMEOUT", &cfg.Cache.ProbeTimeout)
	p.boolean("CACHE_MEMORY_ENABLED", &cfg.Cache.MemoryEnabled)
	p.str("CACHE_DIR", &cfg.Cache.Dir)

	// JWT
	if secret, ok := p.get("JWT_SECRET"); ok {
		cfg.JWT.Enabled = true
		cfg.JWT.Secret = []byte(secret)
	}
	if pub, ok := p.get("JWT_PUBLIC_KEY"); ok {
		cfg.JWT.Enabled = true
		cfg.JWT.PublicKey = []byte(pub)
	}
	p.duration("JWT_LEEWAY", &cfg.JWT.Leeway)
	p.str("JWT_ISSUER", &cfg.JWT.Issuer)
	p.str("JWT_AUDIENCE", &cfg.JWT.Audience)

	// CLIENT IP / FAILURE MODE
	p.list("TRUSTED_PROXIES", &cfg.ClientIP.TrustedProxies)
	var failOpen bool
	p.boolean("FAIL_OPEN", &failOpen)
	if failOpen {
		cfg.FailureMode = FailOpen
	}

	// AUDIT / METRICS
	p.boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)
	p.boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envParser struct {
	lookup func(string) (string, bool)
	errs   []error
}

// get returns trimmed non-empty values only; an empty variable keeps the
// default.
func (p *envParser) get(name string) (string, bool) {
	v, ok := p.lookup(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (p *envParser) str(name string, dst *string) {
	if v, ok := p.get(name); ok {
		*dst = v
	}
}

func (p *envParser) boolean(name string, dst *bool) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", name, v))
		return
	}
	*dst = b
}

func (p *envParser) int64(name string, dst *int64) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", name, v))
		return
	}
	*dst = n
}

func (p *envParser) int(name string, dst *int) {
	n := int64(*dst)
	p.int64(name, &n)
	*dst = int(n)
}

func (p *envParser) duration(name string, dst *time.Duration) {
	v, ok := p.get(name)
	if !ok {
		return
	}
	d, err := ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}

func (p *envParser) list(name string, dst *[]string) {
	if v, ok := p.get(name); ok {
		*dst = splitList(v)
	}
}

// ParseDuration accepts Go duration syntax or an integer number of seconds.
func ParseDuration(v string) (time.Duration, error) {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", v)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
