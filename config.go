package goGuard

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/flows"
	"github.com/MrEthical07/goGuard/jwt"
)

// Config defines every tunable of a Guard.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable. Build clones the value it receives.
type Config struct {
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Abuse       AbuseConfig
	Session     SessionConfig
	Routes      RoutesConfig
	Cache       CacheConfig
	JWT         JWTConfig
	ClientIP    ClientIPConfig
	FailureMode FailureMode
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig holds the static API key. An empty SharedSecret puts the Guard
// in open mode: every request that is not rate limited passes.
type AuthConfig struct {
	SharedSecret string
	APIKeyHeader string
}

/*
====================================
RATE LIMIT AND ABUSE CONFIG
====================================
*/

// RateLimitConfig bounds the number of requests per IP in a fixed window.
type RateLimitConfig struct {
	Enabled     bool
	MaxRequests int
	Window      time.Duration
}

// AbuseConfig controls automatic blocking of IPs that keep failing
// authentication.
type AbuseConfig struct {
	MaxInvalidAttempts int
	AttemptWindow      time.Duration
	BlockDuration      time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls caching of resolved identities.
type SessionConfig struct {
	TTL time.Duration
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig lists path patterns. A pattern is an exact path, a prefix
// ending in "/*", or a path.Match glob such as "/auth/*/callback".
type RoutesConfig struct {
	// Bypass paths skip every check, including rate limiting.
	Bypass []string
	// Public paths only need a matching API key.
	Public []string
	// PublicAll makes every path public.
	PublicAll bool
	// Logout paths answer 401 without counting an invalid attempt when the
	// bearer token is missing.
	Logout []string
}

/*
====================================
CACHE CONFIG
====================================
*/

// CacheConfig selects the counter and session storage tier.
type CacheConfig struct {
	Mode          cache.Mode
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	ProbeTimeout  time.Duration
	MemoryEnabled bool
	Dir           string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig enables signature verification of bearer tokens before the
// session lookup. Tokens that fail verification count as invalid attempts.
//
// Set Secret for HS256 or PublicKey (Ed25519, raw or PEM) for tokens minted
// by an external issuer. Exactly one of the two must be set.
type JWTConfig struct {
	Enabled   bool
	Secret    []byte
	PublicKey []byte
	Issuer    string
	Audience  string
	Leeway    time.Duration
}

func (c JWTConfig) signingMethod() jwt.SigningMethod {
	if len(c.PublicKey) > 0 {
		return jwt.MethodEd25519
	}
	return jwt.MethodHS256
}

/*
====================================
CLIENT IP CONFIG
====================================
*/

// ClientIPConfig lists proxies whose X-Forwarded-For and X-Real-IP headers
// are trusted. Entries are IP addresses or CIDR prefixes.
type ClientIPConfig struct {
	TrustedProxies []string
}

/*
====================================
FAILURE MODE
====================================
*/

// FailureMode decides what happens when the cache fails during the counter
// steps.
type FailureMode int

const (
	// FailClosed treats any infrastructure error as an invalid attempt.
	FailClosed FailureMode = iota
	// FailOpen lets requests through the rate-limit and block checks when the
	// cache errors. Credential resolution still fails closed.
	FailOpen
)

func (m FailureMode) String() string {
	switch m {
	case FailClosed:
		return "fail_closed"
	case FailOpen:
		return "fail_open"
	default:
		return fmt.Sprintf("FailureMode(%d)", int(m))
	}
}

/*
====================================
AUDIT AND METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration: open mode, 100 requests
// per minute, block after 5 invalid attempts in 15 minutes for one hour,
// identities cached for two hours, and automatic cache tier selection.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			APIKeyHeader: "X-API-Key",
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			Window:      60 * time.Second,
		},
		Abuse: AbuseConfig{
			MaxInvalidAttempts: 5,
			AttemptWindow:      15 * time.Minute,
			BlockDuration:      time.Hour,
		},
		Session: SessionConfig{
			TTL: 2 * time.Hour,
		},
		Routes: RoutesConfig{
			Bypass: []string{
				"/health",
				"/docs",
				"/docs/*",
				"/swagger/*",
				"/auth/*/callback",
			},
			Public: []string{
				"/auth/login",
				"/auth/register",
				"/auth/forgot-password",
				"/auth/reset-password",
			},
			Logout: []string{"/auth/logout"},
		},
		Cache: CacheConfig{
			Mode:          cache.ModeAuto,
			RedisPrefix:   cache.DefaultRedisPrefix,
			ProbeTimeout:  500 * time.Millisecond,
			MemoryEnabled: true,
			Dir:           "storage/cache",
		},
		FailureMode: FailClosed,
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Routes.Bypass = cloneStrings(cfg.Routes.Bypass)
	out.Routes.Public = cloneStrings(cfg.Routes.Public)
	out.Routes.Logout = cloneStrings(cfg.Routes.Logout)
	out.ClientIP.TrustedProxies = cloneStrings(cfg.ClientIP.TrustedProxies)
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first inconsistency in c. Build calls it; callers
// loading configuration from files may call it earlier.
func (c *Config) Validate() error {
	// Auth
	if strings.TrimSpace(c.Auth.APIKeyHeader) == "" {
		return errors.New("Auth APIKeyHeader must be set")
	}
	if http.CanonicalHeaderKey(c.Auth.APIKeyHeader) == "Authorization" {
		return errors.New("Auth APIKeyHeader must not be Authorization")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return errors.New("RateLimit MaxRequests must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Abuse
	if c.Abuse.MaxInvalidAttempts <= 0 {
		return errors.New("Abuse MaxInvalidAttempts must be > 0")
	}
	if c.Abuse.AttemptWindow <= 0 {
		return errors.New("Abuse AttemptWindow must be > 0")
	}
	if c.Abuse.BlockDuration <= 0 {
		return errors.New("Abuse BlockDuration must be > 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}

	// Routes
	for _, group := range [][]string{c.Routes.Bypass, c.Routes.Public, c.Routes.Logout} {
		if _, err := flows.NewRouteSet(group); err != nil {
			return fmt.Errorf("Routes: %w", err)
		}
	}

	// Cache
	switch c.Cache.Mode {
	case cache.ModeAuto, cache.ModeRedis, cache.ModeMemory, cache.ModeFilesystem:
	default:
		return fmt.Errorf("Cache Mode %q is not supported", c.Cache.Mode)
	}
	if c.Cache.Mode == cache.ModeRedis && c.Cache.RedisAddr == "" {
		return errors.New("Cache RedisAddr is required in redis mode")
	}
	if c.Cache.ProbeTimeout < 0 {
		return errors.New("Cache ProbeTimeout must be >= 0")
	}
	if c.Cache.RedisDB < 0 {
		return errors.New("Cache RedisDB must be >= 0")
	}
	if (c.Cache.Mode == cache.ModeFilesystem || (c.Cache.Mode == cache.ModeAuto && !c.Cache.MemoryEnabled)) &&
		strings.TrimSpace(c.Cache.Dir) == "" {
		return errors.New("Cache Dir is required when the filesystem tier can be selected")
	}

	// JWT
	if c.JWT.Enabled {
		if (len(c.JWT.Secret) == 0) == (len(c.JWT.PublicKey) == 0) {
			return errors.New("JWT requires exactly one of Secret or PublicKey when enabled")
		}
		if len(c.JWT.PublicKey) > 0 {
			if _, err := jwt.ParsePublicKey(c.JWT.PublicKey); err != nil {
				return fmt.Errorf("JWT PublicKey: %w", err)
			}
		}
		if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
			return errors.New("JWT Leeway must be between 0 and 2m")
		}
	}

	// Client IP
	for _, p := range c.ClientIP.TrustedProxies {
		if _, err := parseTrustedProxy(p); err != nil {
			return fmt.Errorf("ClientIP TrustedProxies: %w", err)
		}
	}

	// Failure mode
	if c.FailureMode != FailClosed && c.FailureMode != FailOpen {
		return fmt.Errorf("unsupported %s", c.FailureMode)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

// ParseTrustedProxies converts IP addresses and CIDR prefixes into prefixes.
// A bare address becomes a single-address prefix.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		p, err := parseTrustedProxy(e)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseTrustedProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid proxy prefix %q: %w", entry, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid proxy address %q: %w", entry, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
