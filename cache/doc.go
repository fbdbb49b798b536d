// Package cache is the key/value store behind every counter, flag and cached
// identity the guard keeps.
//
// # Tiers
//
// A [Client] wraps exactly one [Backend], chosen once at startup by [Open]:
//
//   - [RedisBackend] — shared across processes and hosts; the only tier with a
//     linearizable Increment (Lua INCR + PEXPIRE).
//   - [MemoryBackend] — process-local map; Increment is atomic inside one
//     process but counters are not shared between worker processes.
//   - [FilesystemBackend] — one file per key; always available, slowest, and
//     incremented with read-modify-write.
//
// # Expiry
//
// Every write carries a TTL > 0. Expiry is lazy: an expired entry is dropped
// the next time it is read. No tier runs a background sweeper.
//
// # What this package must NOT do
//
//   - Know about rate limits, blocks or sessions (see internal/rate and session).
//   - Probe backends per call. Selection happens once in [Open].
package cache
