// Package flows contains pure-function orchestrators for Guard operations.
//
// Each flow function (RunEvaluate, RunRevoke) accepts a typed dependency
// struct and returns a result value without side-effects beyond those
// dependencies. The Guard maps results to HTTP rejections, logs, metrics and
// audit events.
//
// # Architecture boundaries
//
// Flow functions coordinate the limiter, the session cache and the token
// resolver. They do NOT own any of these resources; ownership stays with the
// Guard.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goGuard (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
