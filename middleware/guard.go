package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	goGuard "github.com/MrEthical07/goGuard"
)

// HeaderRequestID carries the request identifier in both directions.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// Guard returns middleware that evaluates every request with g. Rejected
// requests are answered with the decision's status and a JSON body of the form
// {"error":"<code>"}; the wrapped handler is not called. Authenticated
// requests carry their identity, available through
// [goGuard.IdentityFromContext].
//
// Client addresses are resolved with the trusted proxies from g's config.
func Guard(g *goGuard.Guard) func(http.Handler) http.Handler {
	var resolver *ClientIPResolver
	if g != nil {
		// The config was validated by Build, so the proxies always parse.
		resolver, _ = NewClientIPResolver(g.Config().ClientIP.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := requestIDFrom(r)
			w.Header().Set(HeaderRequestID, requestID)

			if g == nil {
				writeError(w, http.StatusUnauthorized, goGuard.CodeTokenInvalid)
				return
			}

			d := g.Evaluate(r.Context(), goGuard.Request{
				Method:    r.Method,
				Path:      r.URL.Path,
				ClientIP:  resolver.ClientIP(r),
				UserAgent: r.UserAgent(),
				RequestID: requestID,
				Header:    r.Header,
			})
			if !d.Allowed() {
				writeError(w, d.Rejection.Status, d.Rejection.Code)
				return
			}

			ctx := goGuard.WithRequestID(r.Context(), requestID)
			if d.Identity != nil {
				ctx = goGuard.WithIdentity(ctx, d.Identity)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestIDFrom(r *http.Request) string {
	id := r.Header.Get(HeaderRequestID)
	if id == "" || len(id) > maxRequestIDLen || !printable(id) {
		return uuid.NewString()
	}
	return id
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code})
}
