// Package keys builds cache keys for every piece of state the guard keeps.
//
// # Key layout
//
// Keys are "<purpose>.<subject>" where subject has been sanitized so it is safe
// both as a Redis key and as a path component for the filesystem cache tier:
//   - ratelimit.  — per-IP request counter
//   - attempts.   — per-IP invalid-credential counter
//   - blocked_ip. — per-IP block flag
//   - session.    — cached identity, keyed by SHA-256 of the bearer token
//
// # What this package must NOT do
//
//   - Touch the cache. It only produces strings.
//   - Accept raw bearer tokens as key subjects (use [TokenHash] first).
package keys
