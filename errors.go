package goGuard

import (
	"errors"
	"net/http"
)

var (
	// ErrTokenNotFound is returned by a TokenStore when no live token matches
	// the digest.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenStoreRequired is returned by Build when a shared secret is set
	// but no TokenStore was provided.
	ErrTokenStoreRequired = errors.New("token store required")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrGuardClosed is returned by operations on a closed Guard.
	ErrGuardClosed = errors.New("guard closed")
	// ErrRevokeUnsupported is returned by Revoke when the token store cannot
	// revoke tokens. The cached identity is still dropped.
	ErrRevokeUnsupported = errors.New("token store does not support revocation")
)

// Rejection codes carried in the JSON error body.
const (
	CodeRateLimited         = "rate_limit_exceeded"
	CodeIPBlocked           = "ip_blocked"
	CodeMissingAPIKey       = "missing_api_key"
	CodeMissingSharedSecret = "missing_shared_secret"
	CodeInvalidAPIKey       = "invalid_api_key"
	CodeTokenInvalid        = "token_invalid_or_revoked"
)

// Rejection describes why a request was refused and how to answer it.
type Rejection struct {
	Status int
	Code   string
	// Reason is a human-readable detail for logs. It is never sent to the
	// client.
	Reason string
}

func (r *Rejection) Error() string {
	if r == nil {
		return "<nil>"
	}
	if r.Reason == "" {
		return r.Code
	}
	return r.Code + ": " + r.Reason
}

func newRejection(code, reason string) *Rejection {
	return &Rejection{Status: statusForCode(code), Code: code, Reason: reason}
}

func statusForCode(code string) int {
	switch code {
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeIPBlocked, CodeInvalidAPIKey:
		return http.StatusForbidden
	case CodeMissingAPIKey, CodeMissingSharedSecret:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}
