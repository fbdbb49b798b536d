// Package rate holds the per-IP counter policies of the guard pipeline:
// request rate limiting, invalid-attempt accounting and IP blocking.
//
// # Window semantics
//
// Fixed-window counters: the window starts at the first increment and is not
// extended by later ones. Keys (see internal/keys):
//   - ratelimit.<ip>  — requests in the current rate-limit window
//   - attempts.<ip>   — invalid credential attempts in the attempt window
//   - blocked_ip.<ip> — block flag, lives for the block duration
//
// Accuracy depends on the cache tier. Redis is exact; memory is exact per
// process; filesystem may under-count under concurrent bursts.
//
// # What this package must NOT do
//
//   - Inspect credentials or decide HTTP status codes.
//   - Be imported outside the goGuard module.
package rate
