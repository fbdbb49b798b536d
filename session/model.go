package session

// Identity is the cached result of resolving a bearer token.
//
// Role is optional; the empty string means the owner has no role.
type Identity struct {
	ID    string
	Name  string
	Email string
	Role  string

	// CachedAt is the unix time the record was written to the cache.
	CachedAt int64

	// SchemaVersion is the version the record was decoded from. Encode always
	// writes CurrentSchemaVersion.
	SchemaVersion uint8
}
