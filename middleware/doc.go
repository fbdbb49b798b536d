// Package middleware adapts a goGuard.Guard to net/http.
//
// # Handlers
//
//   - [Guard] evaluates each request and either rejects it with a JSON error
//     body or calls the next handler with the identity in the context.
//   - [Logout] revokes the bearer token of an authenticated request.
//   - [ClientIPResolver] derives the client address behind trusted proxies.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Guard calls. It does NOT
// implement authentication logic itself; every decision comes from
// Guard.Evaluate.
//
// # What this package must NOT do
//
//   - Touch the cache or the token store directly.
//   - Log decisions (the Guard already logs one record per request).
//   - Trust forwarding headers from peers outside the trusted proxy list.
package middleware
