// Package goGuard is a request authentication and abuse-mitigation layer for
// HTTP APIs. It checks a static API key and bearer tokens, enforces per-IP
// rate limits, blocks clients that keep presenting bad credentials, and caches
// resolved identities so that a valid token costs one cache read.
//
// A [Guard] is assembled once through [Builder.Build] and is safe for
// concurrent use afterwards. Each call to [Guard.Evaluate] walks the same
// ordered pipeline: bypass routes, open mode, rate limit, block check,
// required headers, public routes, API key, bearer token, session resolution.
// The first failing step decides the response.
//
// # Architecture boundaries
//
// goGuard is the public surface. It exposes [Guard], [Builder], [Config],
// [Request], [Decision] and [Rejection]. Pipeline orchestration, counter
// policies and key construction live under internal/. Storage tiers live in
// the cache package and never see request data.
//
// # What this package must NOT do
//
//   - Store raw bearer tokens anywhere. Only SHA-256 digests reach the cache or
//     the token store.
//   - Import the tokenstore or middleware packages (they import goGuard).
//   - Hold locks across requests.
package goGuard
