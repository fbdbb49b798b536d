package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/keys"
)

const (
	testSecret = "middleware-shared-secret"
	liveToken  = "live-token-123"
)

type memoryTokenStore struct {
	mu      sync.Mutex
	owners  map[string]goGuard.Identity
	revoked map[string]bool
}

func newMemoryTokenStore() *memoryTokenStore {
	s := &memoryTokenStore{
		owners:  map[string]goGuard.Identity{},
		revoked: map[string]bool{},
	}
	s.owners[keys.TokenHash(liveToken)] = goGuard.Identity{ID: "9", Name: "Alan Turing", Email: "alan@example.com"}
	return s
}

func (s *memoryTokenStore) FindActiveTokenOwner(_ context.Context, tokenHash string) (*goGuard.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.owners[tokenHash]
	if !ok || s.revoked[tokenHash] {
		return nil, goGuard.ErrTokenNotFound
	}
	return &id, nil
}

func (s *memoryTokenStore) RevokeToken(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[tokenHash]; !ok {
		return false, goGuard.ErrTokenNotFound
	}
	if s.revoked[tokenHash] {
		return false, nil
	}
	s.revoked[tokenHash] = true
	return true, nil
}

func newTestGuard(t *testing.T, store goGuard.TokenStore, mutate func(*goGuard.Config)) *goGuard.Guard {
	t.Helper()

	cfg := goGuard.DefaultConfig()
	cfg.Auth.SharedSecret = testSecret
	cfg.Cache.Mode = cache.ModeMemory
	if mutate != nil {
		mutate(&cfg)
	}

	g, err := goGuard.New().
		WithConfig(cfg).
		WithTokenStore(store).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func newRequest(method, path, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "203.0.113.7:51234"
	r.Header.Set("X-API-Key", testSecret)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}
