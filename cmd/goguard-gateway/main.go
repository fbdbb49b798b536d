package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/tokenstore"
)

func main() {
	cfg, err := readConfig(os.LookupEnv)
	if err != nil {
		slog.Error("config error", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.logLevel)}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("gateway stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg gatewayConfig, logger *slog.Logger) error {
	b := goGuard.New().
		WithConfig(cfg.guard).
		WithLogger(logger)

	if cfg.dbDSN != "" {
		db, err := tokenstore.Open(cfg.dbDriver, cfg.dbDSN)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		store := tokenstore.New(db)
		if cfg.dbMigrate {
			if err := store.AutoMigrate(ctx); err != nil {
				return err
			}
		}
		b = b.WithTokenStore(store)
	}
	if cfg.auditJSON {
		b = b.WithAuditSink(goGuard.NewJSONWriterSink(os.Stdout))
	} else {
		b = b.WithAuditSink(goGuard.NewLogSink(logger))
	}

	guard, err := b.BuildContext(ctx)
	if err != nil {
		return err
	}
	defer guard.Close()

	proxy := httputil.NewSingleHostReverseProxy(cfg.upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("proxy error",
			slog.String("request_id", w.Header().Get(middleware.HeaderRequestID)),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	mux := http.NewServeMux()
	for _, p := range cfg.guard.Routes.Logout {
		// Glob logout patterns are still guarded but proxied upstream.
		if strings.ContainsAny(p, "*?[") {
			continue
		}
		mux.Handle(p, middleware.Logout(guard))
	}
	mux.Handle("/", proxy)

	servers := []*http.Server{{
		Addr:              cfg.listenAddr,
		Handler:           middleware.Guard(guard)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}}
	if cfg.metricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", prometheus.NewPrometheusExporter(guard).Handler())
		servers = append(servers, &http.Server{
			Addr:              cfg.metricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("listening", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}(srv)
	}

	report := guard.SecurityReport()
	logger.Info("gateway started",
		slog.String("upstream", cfg.upstream.String()),
		slog.String("cache", report.CacheBackend),
		slog.Bool("atomic_counters", report.AtomicCounters),
		slog.Bool("public_mode", report.PublicMode),
		slog.Bool("rate_limiting", report.RateLimitingActive),
		slog.Bool("jwt_preverify", report.JWTPreverify),
		slog.String("failure_mode", cfg.guard.FailureMode.String()),
	)
	for _, w := range infoFindings(cfg.guard) {
		logger.Info("guard configuration note",
			slog.String("code", w.Code),
			slog.String("detail", w.Message),
		)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return runErr
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
