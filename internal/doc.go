// Package internal groups helpers that are private to goGuard.
//
// # Sub-packages
//
//   - flows: the evaluate and revoke pipelines as pure functions over injected
//     dependencies
//   - keys: cache key construction and sanitising
//   - rate: fixed-window request counters and invalid-attempt blocking
//   - security: the security posture report
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuard API, except through
//     aliases declared by the root package.
//   - Be imported by any package outside the goGuard module.
package internal
