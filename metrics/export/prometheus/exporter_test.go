package prometheus

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/cache"
)

type fakeSource struct {
	snapshot goGuard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goGuard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                    { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricAllowed: 7,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricEvaluateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "goguard_allowed_total 7") {
		t.Fatalf("expected allowed counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "goguard_evaluate_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "goguard_evaluate_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "goguard_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{goGuard.MetricAllowed: 1},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRenderFromGuard(t *testing.T) {
	cfg := goGuard.DefaultConfig()
	cfg.Cache.Mode = cache.ModeMemory
	cfg.Metrics.Enabled = true
	g, err := goGuard.New().
		WithConfig(cfg).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer g.Close()

	g.Evaluate(context.Background(), goGuard.Request{Method: http.MethodGet, Path: "/orders", ClientIP: "10.0.0.1"})
	g.Evaluate(context.Background(), goGuard.Request{Method: http.MethodGet, Path: "/health", ClientIP: "10.0.0.1"})

	out := NewPrometheusExporter(g).Render()
	if !strings.Contains(out, "goguard_public_mode_total 1") {
		t.Fatalf("expected public mode counter, got:\n%s", out)
	}
	if !strings.Contains(out, "goguard_bypassed_total 1") {
		t.Fatalf("expected bypass counter, got:\n%s", out)
	}
	if !strings.Contains(out, `goguard_cache_backend_info{backend="memory"} 1`) {
		t.Fatalf("expected cache backend info, got:\n%s", out)
	}
}

func TestRenderOmitsBackendInfoForPlainSource(t *testing.T) {
	out := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{Counters: map[goGuard.MetricID]uint64{goGuard.MetricAllowed: 1}},
	}).Render()
	if strings.Contains(out, "goguard_cache_backend_info") {
		t.Fatalf("fake source has no cache tier, got:\n%s", out)
	}
}

func TestEscapeLabel(t *testing.T) {
	if got := escapeLabel("a\"b\\c\n"); got != `a\"b\\c\n` {
		t.Fatalf("unexpected escape %q", got)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricAllowed:          1000,
				goGuard.MetricTokenInvalid:     40,
				goGuard.MetricSessionCacheHit:  800,
				goGuard.MetricSessionCacheMiss: 200,
				goGuard.MetricRateLimited:      10,
				goGuard.MetricBlockIssued:      2,
				goGuard.MetricIPBlocked:        3,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricEvaluateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
