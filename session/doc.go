// Package session caches resolved identities so that a bearer token is looked
// up in the persistent store at most once per session TTL.
//
// # Binary encoding
//
// Identities are stored as a compact, versioned binary blob (schema versions
// v1–v2). Older versions decode into the current [Identity] with missing fields
// left empty. The encoder is append-only: new versions add fields but never
// reinterpret old ones.
//
// # Architecture boundaries
//
// This package owns the [Store] (cache reads and writes under session keys)
// and the [Identity] model. It does NOT hash tokens, query the persistent
// store, or decide whether a request is allowed; those belong to the Guard.
//
// # What this package must NOT do
//
//   - Import goGuard, jwt, or tokenstore (no upward imports).
//   - Store raw bearer tokens. Keys are always built from a token hash.
package session
