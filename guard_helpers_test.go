package goGuard

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/keys"
)

const (
	testSecret = "s3cret-shared-key-0123456789"
	testIP     = "10.0.0.1"
	goodToken  = "good-token-abc"
)

type fakeTokenStore struct {
	mu      sync.Mutex
	tokens  map[string]Identity
	revoked map[string]bool
	calls   int
	err     error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{
		tokens:  map[string]Identity{},
		revoked: map[string]bool{},
	}
}

func (s *fakeTokenStore) add(token string, id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[keys.TokenHash(token)] = id
}

func (s *fakeTokenStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *fakeTokenStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeTokenStore) FindActiveTokenOwner(_ context.Context, tokenHash string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	id, ok := s.tokens[tokenHash]
	if !ok || s.revoked[tokenHash] {
		return nil, ErrTokenNotFound
	}
	return &id, nil
}

func (s *fakeTokenStore) RevokeToken(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[tokenHash]; !ok {
		return false, ErrTokenNotFound
	}
	if s.revoked[tokenHash] {
		return false, nil
	}
	s.revoked[tokenHash] = true
	return true, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type guardHarness struct {
	guard *Guard
	mr    *miniredis.Miniredis
	store *fakeTokenStore
	logs  *syncBuffer
}

func newGuardHarness(t *testing.T, mutate func(*Config)) *guardHarness {
	t.Helper()
	return newGuardHarnessWithSink(t, mutate, nil)
}

func newGuardHarnessWithSink(t *testing.T, mutate func(*Config), sink AuditSink) *guardHarness {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.Auth.SharedSecret = testSecret
	cfg.Metrics.Enabled = true
	if mutate != nil {
		mutate(&cfg)
	}

	store := newFakeTokenStore()
	store.add(goodToken, Identity{ID: "42", Name: "Ada Lovelace", Email: "ada@example.com", Role: "2"})

	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithTokenStore(store).
		WithLogger(logger)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })

	if got := g.CacheBackend(); got != string(cache.ModeRedis) {
		t.Fatalf("expected redis backend, got %q", got)
	}

	return &guardHarness{guard: g, mr: mr, store: store, logs: logs}
}

func apiRequest(path, token string) Request {
	h := http.Header{}
	h.Set("X-API-Key", testSecret)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return Request{
		Method:    http.MethodGet,
		Path:      path,
		ClientIP:  testIP,
		UserAgent: "guard-test/1.0",
		RequestID: "req-test",
		Header:    h,
	}
}

func (h *guardHarness) evaluate(req Request) Decision {
	return h.guard.Evaluate(context.Background(), req)
}

func (h *guardHarness) attempts(t *testing.T) int64 {
	t.Helper()
	n, err := h.guard.InvalidAttempts(context.Background(), testIP)
	if err != nil {
		t.Fatalf("InvalidAttempts: %v", err)
	}
	return n
}

func requireRejection(t *testing.T, d Decision, status int, code string) {
	t.Helper()
	if d.Allowed() {
		t.Fatalf("expected rejection %d %s, got outcome %s", status, code, d.Outcome)
	}
	if d.Rejection.Status != status || d.Rejection.Code != code {
		t.Fatalf("expected %d %s, got %d %s (%s)", status, code, d.Rejection.Status, d.Rejection.Code, d.Rejection.Reason)
	}
}

func requireOutcome(t *testing.T, d Decision, want Outcome) {
	t.Helper()
	if d.Outcome != want {
		reason := ""
		if d.Rejection != nil {
			reason = d.Rejection.Error()
		}
		t.Fatalf("expected outcome %s, got %s %s", want, d.Outcome, reason)
	}
}

type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Name() string { return "failing" }
func (failingBackend) Get(context.Context, string) (cache.Entry, bool, error) {
	return cache.Entry{}, false, errBackendDown
}
func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errBackendDown
}
func (failingBackend) Delete(context.Context, string) error { return errBackendDown }
func (failingBackend) Close() error                         { return nil }

func logLines(logs string, substr string) []string {
	var out []string
	for _, line := range strings.Split(logs, "\n") {
		if strings.Contains(line, substr) {
			out = append(out, line)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
