package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	ErrMissingKey   = errors.New("jwt: no verification key configured")
	ErrCannotIssue  = errors.New("jwt: no signing key configured")
	ErrFutureIssued = errors.New("jwt: iat too far in the future")
)

// Config configures a Manager.
//
// HS256 uses Secret for both directions. Ed25519 verifies with PublicKey
// (raw 32 bytes or PEM); PrivateKey is optional and only enables Issue.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte
	PublicKey     []byte
	PrivateKey    []byte

	Issuer       string
	Audience     string
	TokenTTL     time.Duration
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration
}

// Claims are the fields carried by tokens issued for API users.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager verifies tokens. It is immutable after NewManager and safe for
// concurrent use.
type Manager struct {
	method    jwt.SigningMethod
	verifyKey any
	signKey   any
	parser    *jwt.Parser

	issuer       string
	audience     string
	ttl          time.Duration
	maxFutureIAT time.Duration
	now          func() time.Time
}

// NewManager resolves the keys in cfg and builds the parser once. Defaults:
// one hour token TTL, ten minutes of tolerated future iat.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.TokenTTL < 0 {
		return nil, errors.New("jwt: TokenTTL must be positive")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: Leeway must be between 0 and 2m")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("jwt: MaxFutureIAT must be between 0 and 24h")
	}

	m := &Manager{
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		ttl:          cfg.TokenTTL,
		maxFutureIAT: cfg.MaxFutureIAT,
		now:          time.Now,
	}

	switch cfg.SigningMethod {
	case MethodHS256, "":
		if len(cfg.Secret) == 0 {
			return nil, fmt.Errorf("hs256: %w", ErrMissingKey)
		}
		secret := append([]byte(nil), cfg.Secret...)
		m.method, m.verifyKey, m.signKey = jwt.SigningMethodHS256, secret, secret
	case MethodEd25519:
		if len(cfg.PublicKey) == 0 {
			return nil, fmt.Errorf("ed25519: %w", ErrMissingKey)
		}
		pub, err := ParsePublicKey(cfg.PublicKey)
		if err != nil {
			return nil, err
		}
		m.method, m.verifyKey = jwt.SigningMethodEdDSA, pub
		if len(cfg.PrivateKey) > 0 {
			priv, err := parsePrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
		}
	default:
		return nil, fmt.Errorf("jwt: unsupported signing method %q", cfg.SigningMethod)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.RequireIAT {
		opts = append(opts, jwt.WithIssuedAt())
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(opts...)

	return m, nil
}

// Algorithm reports the JOSE alg name tokens must carry.
func (m *Manager) Algorithm() string {
	return m.method.Alg()
}

// Issue signs a token for subject. The Guard never calls it; it exists for
// seeding stores and for tests.
func (m *Manager) Issue(subject, email string) (string, error) {
	if m.signKey == nil {
		return "", ErrCannotIssue
	}
	now := m.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(m.method, claims).SignedString(m.signKey)
}

// Parse verifies tokenStr and returns its claims.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return m.verifyKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(m.now().Add(m.maxFutureIAT)) {
		return nil, ErrFutureIssued
	}
	return claims, nil
}

// Verify is Parse without the claims, shaped for the Guard pipeline.
func (m *Manager) Verify(tokenStr string) error {
	_, err := m.Parse(tokenStr)
	return err
}

// ParsePublicKey accepts a raw 32-byte Ed25519 key or a PKIX PEM block.
func ParsePublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("jwt: invalid ed25519 public key: %w", err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("jwt: public key is not ed25519")
	}
	return pub, nil
}

func parsePrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, fmt.Errorf("jwt: invalid ed25519 private key: %w", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwt: private key is not ed25519")
	}
	return priv, nil
}
