package goGuard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/cache"
)

// LintSeverity ranks lint findings.
type LintSeverity int

const (
	// LintInfo marks settings that are legitimate but worth knowing about.
	LintInfo LintSeverity = iota
	// LintWarn marks settings that weaken protection.
	LintWarn
	// LintHigh marks settings that are almost certainly a mistake in
	// production.
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding. Code is stable and safe to match on.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of findings for one Config.
type LintResult []LintWarning

// Codes returns the finding codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns findings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins findings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range r.BySeverity(min) {
		errs = append(errs, fmt.Errorf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return errors.Join(errs...)
}

// Lint reports settings that are valid but risky. Unlike Validate it never
// rejects a configuration; binaries log the findings at startup.
func (c *Config) Lint() LintResult {
	var r LintResult
	add := func(code string, sev LintSeverity, msg string) {
		r = append(r, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Auth.SharedSecret == "" {
		add("public_mode", LintWarn, "no shared secret configured; every request passes authentication")
	} else if len(c.Auth.SharedSecret) < 16 {
		add("shared_secret_short", LintHigh, "shared secret is shorter than 16 characters")
	}

	if c.Routes.PublicAll && c.Auth.SharedSecret != "" {
		add("public_all", LintWarn, "every route is public; bearer tokens are never checked")
	}

	if !c.RateLimit.Enabled {
		add("rate_limit_disabled", LintWarn, "per-IP rate limiting is disabled")
	}

	if c.FailureMode == FailOpen {
		add("fail_open", LintWarn, "cache errors skip rate limiting and block checks")
	}

	if c.Abuse.BlockDuration > 0 && c.Abuse.BlockDuration < c.Abuse.AttemptWindow {
		add("block_shorter_than_attempt_window", LintInfo,
			"a blocked client can be re-blocked by attempts counted before the block expired")
	}

	if c.Session.TTL > 24*time.Hour {
		add("session_ttl_long", LintWarn, "revoked tokens keep working until their cached identity expires; consider a shorter session TTL")
	}

	switch {
	case c.Cache.Mode == cache.ModeFilesystem,
		c.Cache.Mode == cache.ModeAuto && !c.Cache.MemoryEnabled && c.Cache.RedisAddr == "":
		add("filesystem_cache", LintWarn, "filesystem counters are not atomic under concurrency and may under-count")
	case c.Cache.Mode == cache.ModeMemory,
		c.Cache.Mode == cache.ModeAuto && c.Cache.RedisAddr == "":
		add("memory_cache", LintInfo, "counters are per-process; limits are not shared between workers")
	}

	if c.JWT.Enabled && len(c.JWT.PublicKey) == 0 && len(c.JWT.Secret) < 32 {
		add("jwt_secret_short", LintWarn, "JWT HMAC secret is shorter than 32 bytes")
	}

	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "audit events are not emitted")
	}

	for _, p := range c.ClientIP.TrustedProxies {
		if strings.HasSuffix(strings.TrimSpace(p), "/0") {
			add("trusted_proxy_any", LintHigh, "a /0 trusted proxy lets any client spoof its IP via X-Forwarded-For")
			break
		}
	}

	return r
}
