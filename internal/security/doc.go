// Package security builds the security posture report of a guard from its
// resolved configuration.
//
// # What this package must NOT do
//
//   - Import the root package.
//   - Perform I/O.
package security
