package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	PrefixRateLimit = "ratelimit"
	PrefixAttempts  = "attempts"
	PrefixBlockedIP = "blocked_ip"
	PrefixSession   = "session"
)

// reserved holds characters with meaning in PSR-6 style key syntax or in
// filesystem paths.
var reserved = strings.NewReplacer(
	":", "_",
	"{", "_",
	"}", "_",
	"(", "_",
	")", "_",
	"/", "_",
	`\`, "_",
	"@", "_",
)

// Sanitize returns prefix + "." + subject with reserved characters replaced by
// an underscore. The same input always yields the same key.
func Sanitize(prefix, subject string) string {
	return prefix + "." + SanitizeRaw(subject)
}

// SanitizeRaw applies the reserved-character replacement to a whole key.
func SanitizeRaw(key string) string {
	return reserved.Replace(key)
}

func RateLimit(ip string) string { return Sanitize(PrefixRateLimit, ip) }

func Attempts(ip string) string { return Sanitize(PrefixAttempts, ip) }

func BlockedIP(ip string) string { return Sanitize(PrefixBlockedIP, ip) }

// Session expects the hex token hash, never the raw token.
func Session(tokenHash string) string { return Sanitize(PrefixSession, tokenHash) }

// TokenHash returns the lowercase hex SHA-256 of a bearer token.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
