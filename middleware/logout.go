package middleware

import (
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/flows"
)

// CodeRevokeFailed is returned when the token store could not revoke a
// token.
const CodeRevokeFailed = "revoke_failed"

// Logout returns a handler that revokes the bearer token of the request. Mount
// it on a logout route behind [Guard] so that only live tokens reach it.
//
// It answers 204 when the token was revoked or was already revoked, and also
// when the store cannot revoke and only the cached identity was dropped.
func Logout(g *goGuard.Guard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := flows.BearerToken(r.Header.Get("Authorization"))
		if !ok || g == nil {
			writeError(w, http.StatusUnauthorized, goGuard.CodeTokenInvalid)
			return
		}

		_, err := g.Revoke(r.Context(), token)
		switch {
		case err == nil, onlyUnsupported(err):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, goGuard.ErrTokenNotFound):
			writeError(w, http.StatusUnauthorized, goGuard.CodeTokenInvalid)
		default:
			writeError(w, http.StatusInternalServerError, CodeRevokeFailed)
		}
	})
}

// onlyUnsupported reports whether err says nothing beyond the store lacking
// revocation support.
func onlyUnsupported(err error) bool {
	if err == goGuard.ErrRevokeUnsupported {
		return true
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return false
	}
	for _, e := range joined.Unwrap() {
		if e != goGuard.ErrRevokeUnsupported {
			return false
		}
	}
	return true
}
