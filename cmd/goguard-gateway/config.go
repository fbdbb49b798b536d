package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
)

type gatewayConfig struct {
	listenAddr  string
	metricsAddr string
	upstream    *url.URL

	dbDriver  string
	dbDSN     string
	dbMigrate bool

	logLevel  string
	auditJSON bool

	guard goGuard.Config
}

// readConfig loads the .env files, then reads gateway settings and the guard
// config from the environment.
func readConfig(lookup func(string) (string, bool), files ...string) (gatewayConfig, error) {
	guardCfg, err := goGuard.LoadConfigFromEnv(files...)
	if err != nil {
		return gatewayConfig{}, err
	}
	return gatewayConfigFrom(lookup, guardCfg)
}

func gatewayConfigFrom(lookup func(string) (string, bool), guardCfg goGuard.Config) (gatewayConfig, error) {
	get := func(k, def string) string {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := gatewayConfig{
		listenAddr:  get("LISTEN_ADDR", ":8080"),
		metricsAddr: get("METRICS_ADDR", ""),
		dbDriver:    strings.ToLower(get("DB_DRIVER", "mysql")),
		dbDSN:       get("DB_DSN", ""),
		logLevel:    strings.ToLower(get("LOG_LEVEL", "info")),
		guard:       guardCfg,
	}

	var errs []error

	raw := get("UPSTREAM_URL", "")
	if raw == "" {
		errs = append(errs, errors.New("UPSTREAM_URL is required"))
	} else {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("UPSTREAM_URL %q must be an absolute URL", raw))
		}
		cfg.upstream = u
	}

	if cfg.dbDSN == "" {
		cfg.dbDSN = mysqlDSNFromParts(get)
	}
	if cfg.guard.Auth.SharedSecret != "" && cfg.dbDSN == "" {
		errs = append(errs, errors.New("DB_DSN or DB_HOST/DB_NAME is required when API_KEY is set"))
	}

	switch get("DB_MIGRATE", "false") {
	case "1", "true", "TRUE", "True":
		cfg.dbMigrate = true
	}
	switch get("AUDIT_STDOUT", "false") {
	case "1", "true", "TRUE", "True":
		cfg.auditJSON = true
	}

	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q must be debug, info, warn or error", cfg.logLevel))
	}

	if err := errors.Join(errs...); err != nil {
		return gatewayConfig{}, err
	}
	return cfg, nil
}

// mysqlDSNFromParts builds a go-sql-driver DSN from DB_HOST, DB_PORT,
// DB_USER, DB_PASSWORD and DB_NAME. It returns "" without a host or name.
func mysqlDSNFromParts(get func(k, def string) string) string {
	host := get("DB_HOST", "")
	name := get("DB_NAME", "")
	if host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		get("DB_USER", "root"),
		get("DB_PASSWORD", ""),
		host,
		get("DB_PORT", "3306"),
		name,
	)
}

// infoFindings returns the lint findings below LintWarn. Build already logs
// the rest.
func infoFindings(c goGuard.Config) goGuard.LintResult {
	var out goGuard.LintResult
	for _, w := range c.Lint() {
		if w.Severity < goGuard.LintWarn {
			out = append(out, w)
		}
	}
	return out
}
