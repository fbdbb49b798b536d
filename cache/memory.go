package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// sweepEvery bounds growth from keys that are written once and never read
// again (one rate-limit counter per client IP, for example).
const sweepEvery = 1024

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend keeps entries in a map owned by this process.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  uint64
	now     func() time.Time
}

var (
	_ Backend           = (*MemoryBackend)(nil)
	_ AtomicIncrementer = (*MemoryBackend)(nil)
)

func NewMemoryBackend(opts ...Option) *MemoryBackend {
	o := buildOptions(opts)
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     o.now,
	}
}

func (b *MemoryBackend) Name() string { return string(ModeMemory) }

func (b *MemoryBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	e, ok := b.live(key, now)
	if !ok {
		return Entry{}, false, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return Entry{Value: value, TTL: e.expiresAt.Sub(now)}, true, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.entries[key] = memoryEntry{value: stored, expiresAt: now.Add(ttl)}
	b.noteWrite(now)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	delete(b.entries, key)
	b.mu.Unlock()
	return nil
}

// Increment is atomic with respect to other callers in this process only.
func (b *MemoryBackend) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	e, ok := b.live(key, now)
	if !ok {
		b.entries[key] = memoryEntry{value: []byte("1"), expiresAt: now.Add(ttl)}
		b.noteWrite(now)
		return 1, nil
	}

	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil || n < 0 {
		n = 0
	}
	n++
	b.entries[key] = memoryEntry{value: []byte(strconv.FormatInt(n, 10)), expiresAt: e.expiresAt}
	return n, nil
}

// Len returns the number of stored entries, expired ones included.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	b.entries = make(map[string]memoryEntry)
	b.mu.Unlock()
	return nil
}

// live must be called with mu held.
func (b *MemoryBackend) live(key string, now time.Time) (memoryEntry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(b.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// noteWrite must be called with mu held.
func (b *MemoryBackend) noteWrite(now time.Time) {
	b.writes++
	if b.writes%sweepEvery != 0 {
		return
	}
	for k, e := range b.entries {
		if !now.Before(e.expiresAt) {
			delete(b.entries, k)
		}
	}
}
