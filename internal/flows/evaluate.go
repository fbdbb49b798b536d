package flows

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/MrEthical07/goGuard/session"
)

// Outcome is the terminal state of one evaluation.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeBypassed
	OutcomePublicMode
	OutcomePublicRoute
	OutcomeAuthenticated
)

// FailureKind classifies rejections for root-level mapping to status codes.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureRateLimited
	FailureIPBlocked
	FailureMissingAPIKey
	FailureMissingSharedSecret
	FailureInvalidAPIKey
	FailureTokenInvalid
)

// EvaluateInput carries the request fields the pipeline reads.
type EvaluateInput struct {
	Path          string
	IP            string
	APIKey        string
	Authorization string
}

// EvaluateResult is either an allowed outcome or a classified rejection.
//
// Err holds infrastructure failures met along the way. It can be set on an
// allowed result when the failure policy let the request continue.
type EvaluateResult struct {
	Outcome  Outcome
	Failure  FailureKind
	Reason   string
	Err      error
	Path     string
	Identity *session.Identity

	TokenHash   string
	CacheHit    bool
	BlockIssued bool
	Attempts    int64
}

type EvaluateLimiter interface {
	AllowRequest(ctx context.Context, ip string) (int64, error)
	IsBlocked(ctx context.Context, ip string) (bool, error)
	RecordInvalidAttempt(ctx context.Context, ip string) (blocked bool, count int64, err error)
}

type EvaluateSessionStore interface {
	Get(ctx context.Context, tokenHash string) (*session.Identity, error)
	Save(ctx context.Context, tokenHash string, identity *session.Identity) error
}

// EvaluateDeps captures pipeline dependencies. Sentinel errors are injected so
// this package does not import the packages that define them.
type EvaluateDeps struct {
	Bypass *RouteSet
	Public *RouteSet
	Logout *RouteSet

	SharedSecret string
	FailOpen     bool

	Limiter     EvaluateLimiter
	RateLimited error

	Sessions        EvaluateSessionStore
	SessionNotFound error
	SessionCorrupt  error

	ResolveOwner  func(ctx context.Context, tokenHash string) (*session.Identity, error)
	OwnerNotFound error

	// VerifyToken is optional. A non-nil error counts as an invalid attempt.
	VerifyToken func(token string) error
	HashToken   func(token string) string
}

// RunEvaluate runs the guard pipeline for one request. Steps are ordered and
// the first rejection is terminal.
func RunEvaluate(ctx context.Context, in EvaluateInput, deps EvaluateDeps) EvaluateResult {
	res := EvaluateResult{Path: CleanPath(in.Path)}

	if deps.Bypass.Match(res.Path) {
		res.Outcome = OutcomeBypassed
		return res
	}

	if deps.SharedSecret == "" {
		res.Outcome = OutcomePublicMode
		return res
	}

	if _, err := deps.Limiter.AllowRequest(ctx, in.IP); err != nil {
		if errors.Is(err, deps.RateLimited) {
			return reject(res, FailureRateLimited, "request budget exhausted for window")
		}
		res.Err = err
		if !deps.FailOpen {
			res.Reason = "rate limit check failed"
			return invalidAttempt(ctx, in, deps, res)
		}
	}

	blocked, err := deps.Limiter.IsBlocked(ctx, in.IP)
	if err != nil {
		res.Err = errors.Join(res.Err, err)
		if !deps.FailOpen {
			res.Reason = "block check failed"
			return invalidAttempt(ctx, in, deps, res)
		}
	}
	if blocked {
		return reject(res, FailureIPBlocked, "ip is blocked")
	}

	if in.APIKey == "" {
		return reject(res, FailureMissingAPIKey, "api key header missing")
	}
	if deps.SharedSecret == "" {
		return reject(res, FailureMissingSharedSecret, "shared secret not configured")
	}

	if deps.Public.Match(res.Path) {
		if !secretEqual(in.APIKey, deps.SharedSecret) {
			return reject(res, FailureInvalidAPIKey, "api key mismatch on public route")
		}
		res.Outcome = OutcomePublicRoute
		return res
	}

	if !secretEqual(in.APIKey, deps.SharedSecret) {
		return reject(res, FailureInvalidAPIKey, "api key mismatch")
	}

	token, ok := BearerToken(in.Authorization)
	if !ok {
		if deps.Logout.Match(res.Path) {
			return reject(res, FailureTokenInvalid, "bearer token missing on logout path")
		}
		res.Reason = "bearer token missing or malformed"
		return invalidAttempt(ctx, in, deps, res)
	}

	if deps.VerifyToken != nil {
		if err := deps.VerifyToken(token); err != nil {
			res.Reason = "token verification failed: " + err.Error()
			return invalidAttempt(ctx, in, deps, res)
		}
	}

	res.TokenHash = deps.HashToken(token)

	identity, err := deps.Sessions.Get(ctx, res.TokenHash)
	switch {
	case err == nil:
		res.CacheHit = true
		res.Identity = identity
		res.Outcome = OutcomeAuthenticated
		return res
	case errors.Is(err, deps.SessionNotFound), errors.Is(err, deps.SessionCorrupt):
	default:
		res.Err = errors.Join(res.Err, err)
		res.Reason = "session cache lookup failed"
		return invalidAttempt(ctx, in, deps, res)
	}

	identity, err = deps.ResolveOwner(ctx, res.TokenHash)
	if err != nil {
		if errors.Is(err, deps.OwnerNotFound) {
			res.Reason = "token not found or revoked"
		} else {
			res.Err = errors.Join(res.Err, err)
			res.Reason = "token lookup failed"
		}
		return invalidAttempt(ctx, in, deps, res)
	}
	if identity == nil {
		res.Reason = "token not found or revoked"
		return invalidAttempt(ctx, in, deps, res)
	}

	// The owner is already verified; a failed cache write only costs a
	// store lookup on the next request.
	if err := deps.Sessions.Save(ctx, res.TokenHash, identity); err != nil {
		res.Err = errors.Join(res.Err, err)
	}

	res.Identity = identity
	res.Outcome = OutcomeAuthenticated
	return res
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is case-insensitive and the token must be a single non-empty word.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) <= len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}

	return token, true
}

func reject(res EvaluateResult, kind FailureKind, reason string) EvaluateResult {
	res.Outcome = OutcomeRejected
	res.Failure = kind
	if res.Reason == "" {
		res.Reason = reason
	}
	return res
}

func invalidAttempt(ctx context.Context, in EvaluateInput, deps EvaluateDeps, res EvaluateResult) EvaluateResult {
	blocked, count, err := deps.Limiter.RecordInvalidAttempt(ctx, in.IP)
	res.Attempts = count
	if err != nil {
		res.Err = errors.Join(res.Err, err)
		return reject(res, FailureTokenInvalid, "")
	}
	if blocked {
		res.BlockIssued = true
		return reject(res, FailureIPBlocked, "")
	}
	return reject(res, FailureTokenInvalid, "")
}

// secretEqual compares digests so neither content nor length leaks through
// timing.
func secretEqual(presented, secret string) bool {
	a := sha256.Sum256([]byte(presented))
	b := sha256.Sum256([]byte(secret))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
