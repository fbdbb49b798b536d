package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/keys"
)

// ErrSessionNotFound is returned when no identity is cached for a token hash.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionCorrupt is returned when a cached record cannot be decoded. The
// entry has already been removed when this is returned.
var ErrSessionCorrupt = errors.New("session corrupt")

// ErrCacheUnavailable wraps cache backend failures.
var ErrCacheUnavailable = errors.New("session cache unavailable")

// Store reads and writes identities under session.<token-hash> keys.
type Store struct {
	cache *cache.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewStore caches identities in c for ttl.
func NewStore(c *cache.Client, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl, now: time.Now}
}

// Get returns the identity cached for tokenHash.
func (s *Store) Get(ctx context.Context, tokenHash string) (*Identity, error) {
	key := keys.Session(tokenHash)

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	identity, err := Decode(raw)
	if err != nil {
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, delErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	return identity, nil
}

// Save caches identity for tokenHash, stamping CachedAt.
func (s *Store) Save(ctx context.Context, tokenHash string, identity *Identity) error {
	if identity == nil {
		return errors.New("nil identity")
	}

	record := *identity
	record.CachedAt = s.now().Unix()
	record.SchemaVersion = CurrentSchemaVersion

	raw, err := Encode(&record)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, keys.Session(tokenHash), raw, s.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	identity.CachedAt = record.CachedAt
	return nil
}

// Delete removes the cached identity for tokenHash. Deleting an absent entry
// succeeds.
func (s *Store) Delete(ctx context.Context, tokenHash string) error {
	if err := s.cache.Delete(ctx, keys.Session(tokenHash)); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
