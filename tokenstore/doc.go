// Package tokenstore resolves bearer-token hashes to their owners in a
// relational database through gorm.
//
// The schema is two tables: users and user_tokens. Only the SHA-256 hex of a
// token is ever stored. A token resolves when its row is not revoked and its
// owner's status is active.
//
// Supported drivers are MySQL (gorm.io/driver/mysql) and SQLite
// (github.com/glebarez/sqlite, pure Go).
package tokenstore
