package flows

import (
	"context"
	"errors"
)

type RevokeSessionStore interface {
	Delete(ctx context.Context, tokenHash string) error
}

// RevokeDeps captures token revocation dependencies. RevokeToken is nil when
// the persistent store cannot revoke.
type RevokeDeps struct {
	Sessions    RevokeSessionStore
	RevokeToken func(ctx context.Context, tokenHash string) (bool, error)
	HashToken   func(token string) string
}

type RevokeResult struct {
	TokenHash string
	// Revoked is true when the persistent store flipped a live token.
	Revoked bool
	Err     error
}

// RunRevoke drops the cached identity for token and revokes it in the
// persistent store. Both steps are idempotent; the cache entry is removed even
// when the store step fails.
func RunRevoke(ctx context.Context, token string, deps RevokeDeps) RevokeResult {
	res := RevokeResult{TokenHash: deps.HashToken(token)}

	cacheErr := deps.Sessions.Delete(ctx, res.TokenHash)

	var storeErr error
	if deps.RevokeToken != nil {
		res.Revoked, storeErr = deps.RevokeToken(ctx, res.TokenHash)
	}

	res.Err = errors.Join(cacheErr, storeErr)
	return res
}
