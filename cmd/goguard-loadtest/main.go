package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/cache"
	"github.com/MrEthical07/goGuard/internal/keys"
)

const loadSecret = "loadtest-shared-secret-value"

func main() {
	var (
		tier        = flag.String("tier", "redis", "cache tier: redis, memory or filesystem")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase (increment + evaluate)")
		tokens      = flag.Int("tokens", 1000, "number of live tokens to seed")
		ips         = flag.Int("ips", 256, "number of distinct client IPs")
		rps         = flag.Float64("rps", 0, "evaluate rate cap per second; 0 means unlimited")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		dir         = flag.String("dir", "", "filesystem tier directory; defaults to a temp dir")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *tokens <= 0 || *ips <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, tokens and ips must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	client, cleanup, err := openTier(ctx, cache.Mode(*tier), *redisAddr, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s tier: %v\n", *tier, err)
		os.Exit(1)
	}
	defer cleanup()
	fmt.Printf("using %s tier (atomic=%v)\n", client.Backend(), client.Atomic())

	incr := runIncrementPhase(ctx, client, *ops, *concurrency)

	g, seeded, err := buildGuard(ctx, client, *tokens)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build guard: %v\n", err)
		os.Exit(1)
	}
	defer g.Close()

	var limiter *rate.Limiter
	if *rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(*rps), *concurrency)
	}
	eval := runEvaluatePhase(ctx, g, limiter, seeded, *ips, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("increment", incr.phaseStats)
	fmt.Printf("increment: expected=%d counted=%d lost=%d\n", incr.expected, incr.counted, incr.expected-incr.counted)
	printStats("evaluate", eval.phaseStats)
	fmt.Printf("evaluate: allowed=%d rejected=%d\n", eval.allowed, eval.rejected)
}

func openTier(ctx context.Context, mode cache.Mode, addr, dir string) (*cache.Client, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	switch mode {
	case cache.ModeRedis:
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		var mr *miniredis.Miniredis
		if addr == "" {
			var err error
			mr, err = miniredis.Run()
			if err != nil {
				return nil, nil, fmt.Errorf("start miniredis: %w", err)
			}
			addr = mr.Addr()
			fmt.Printf("using miniredis at %s\n", addr)
		} else {
			fmt.Printf("using redis at %s\n", addr)
		}
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		c, err := cache.Open(ctx, cache.Options{Mode: cache.ModeRedis, RedisClient: rdb, RedisPrefix: "goguard-load:"}, logger)
		cleanup := func() {
			_ = rdb.Close()
			if mr != nil {
				mr.Close()
			}
		}
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return c, cleanup, nil

	case cache.ModeMemory:
		c, err := cache.Open(ctx, cache.Options{Mode: cache.ModeMemory, MemoryEnabled: true}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { _ = c.Close() }, nil

	case cache.ModeFilesystem:
		remove := func() {}
		if dir == "" {
			tmp, err := os.MkdirTemp("", "goguard-load-*")
			if err != nil {
				return nil, nil, err
			}
			dir = tmp
			remove = func() { _ = os.RemoveAll(tmp) }
		}
		fb, err := cache.NewFilesystemBackend(dir)
		if err != nil {
			remove()
			return nil, nil, err
		}
		// Counters left by an earlier run would skew the lost-update count.
		if err := fb.Clear(); err != nil {
			remove()
			return nil, nil, fmt.Errorf("clear %s: %w", dir, err)
		}
		c := cache.NewClient(fb, logger)
		return c, func() {
			_ = c.Close()
			remove()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown tier %q", mode)
}

type incrementResult struct {
	phaseStats
	expected int64
	counted  int64
}

func runIncrementPhase(ctx context.Context, c *cache.Client, ops, concurrency int) incrementResult {
	key := keys.Attempts("loadtest")
	_ = c.Delete(ctx, key)

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := c.Increment(ctx, key, time.Hour)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)

	counted, err := c.Counter(ctx, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read counter: %v\n", err)
	}
	return incrementResult{
		phaseStats: computeStats(total, latencies, failures),
		expected:   int64(ops) - failures,
		counted:    counted,
	}
}

func buildGuard(ctx context.Context, c *cache.Client, n int) (*goGuard.Guard, []string, error) {
	owners := make(map[string]*goGuard.Identity, n)
	seeded := make([]string, n)
	for i := 0; i < n; i++ {
		token := fmt.Sprintf("load-token-%d", i)
		seeded[i] = token
		owners[keys.TokenHash(token)] = &goGuard.Identity{
			ID:    strconv.Itoa(i + 1),
			Name:  "Load User " + strconv.Itoa(i+1),
			Email: fmt.Sprintf("user%d@example.com", i+1),
		}
	}

	store := goGuard.TokenStoreFunc(func(_ context.Context, tokenHash string) (*goGuard.Identity, error) {
		id, ok := owners[tokenHash]
		if !ok {
			return nil, goGuard.ErrTokenNotFound
		}
		cp := *id
		return &cp, nil
	})

	cfg := goGuard.DefaultConfig()
	cfg.Auth.SharedSecret = loadSecret
	cfg.RateLimit.Enabled = false
	cfg.Abuse.MaxInvalidAttempts = 1 << 30
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	g, err := goGuard.New().
		WithConfig(cfg).
		WithCache(c).
		WithTokenStore(store).
		WithLogger(slog.New(slog.DiscardHandler)).
		BuildContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	return g, seeded, nil
}

type evaluateResult struct {
	phaseStats
	allowed  int64
	rejected int64
}

func runEvaluatePhase(ctx context.Context, g *goGuard.Guard, limiter *rate.Limiter, tokens []string, ips, ops, concurrency int) evaluateResult {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		allowed   int64
		rejected  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			header := http.Header{}
			header.Set("X-API-Key", loadSecret)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
						atomic.AddInt64(&failures, 1)
						continue
					}
				}

				token := tokens[r.Intn(len(tokens))]
				// One request in fifty presents a token nobody issued.
				if r.Intn(50) == 0 {
					token = "unknown-" + token
				}
				header.Set("Authorization", "Bearer "+token)

				t0 := time.Now()
				d := g.Evaluate(ctx, goGuard.Request{
					Method:   http.MethodGet,
					Path:     "/orders",
					ClientIP: clientIP(i % ips),
					Header:   header,
				})
				elapsed := time.Since(t0)
				if d.Allowed() {
					atomic.AddInt64(&allowed, 1)
				} else {
					atomic.AddInt64(&rejected, 1)
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)

	return evaluateResult{
		phaseStats: computeStats(total, latencies, failures),
		allowed:    allowed,
		rejected:   rejected,
	}
}

func clientIP(n int) string {
	return fmt.Sprintf("10.%d.%d.%d", (n>>16)&0xff, (n>>8)&0xff, n&0xff)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
