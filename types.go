package goGuard

import (
	"context"
	"net/http"

	"github.com/MrEthical07/goGuard/session"
)

// Identity is the owner of a bearer token as cached between requests.
type Identity = session.Identity

// Request is the read-only view of an inbound request that the pipeline
// evaluates. Header may be nil.
type Request struct {
	Method    string
	Path      string
	ClientIP  string
	UserAgent string
	RequestID string
	Header    http.Header
}

// Outcome is the terminal state of one evaluation.
type Outcome string

const (
	// OutcomeRejected means the request must be answered with the attached
	// Rejection.
	OutcomeRejected Outcome = "rejected"
	// OutcomeBypassed means the path matched a bypass route. No cache was
	// touched.
	OutcomeBypassed Outcome = "bypassed"
	// OutcomePublicMode means no shared secret is configured and every
	// request passes.
	OutcomePublicMode Outcome = "public_mode"
	// OutcomePublicRoute means the path is public and the API key matched.
	OutcomePublicRoute Outcome = "public_route"
	// OutcomeAuthenticated means the bearer token resolved to an Identity.
	OutcomeAuthenticated Outcome = "authenticated"
)

// Decision is the result of [Guard.Evaluate].
type Decision struct {
	Outcome   Outcome
	Identity  *Identity
	Rejection *Rejection

	// Path is the normalized request path the routes were matched against.
	Path     string
	CacheHit bool
}

// Allowed reports whether the request may reach the application.
func (d Decision) Allowed() bool {
	return d.Outcome != OutcomeRejected && d.Rejection == nil
}

// TokenStore resolves a token digest to the owning user. It returns
// [ErrTokenNotFound] when no live token matches; any other error is treated
// as an infrastructure failure.
//
// Implementations are stateless from the Guard's point of view: results are
// cached by the Guard, not by the store.
type TokenStore interface {
	FindActiveTokenOwner(ctx context.Context, tokenHash string) (*Identity, error)
}

// TokenRevoker is implemented by token stores that can revoke tokens. Revoked
// reports whether a live token was flipped; revoking an already revoked token
// is not an error.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenHash string) (bool, error)
}

// TokenStoreFunc adapts a function to the [TokenStore] interface.
type TokenStoreFunc func(ctx context.Context, tokenHash string) (*Identity, error)

// FindActiveTokenOwner calls f.
func (f TokenStoreFunc) FindActiveTokenOwner(ctx context.Context, tokenHash string) (*Identity, error) {
	return f(ctx, tokenHash)
}
