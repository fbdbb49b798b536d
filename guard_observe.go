package goGuard

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/internal/flows"
)

// record emits the metrics, the log record and the audit event for one
// decision.
func (g *Guard) record(ctx context.Context, req Request, res flows.EvaluateResult, d Decision) {
	g.countDecision(res, d)

	level := slog.LevelInfo
	msg := "request allowed"
	switch {
	case res.Err != nil:
		level = slog.LevelError
		if d.Rejection != nil {
			msg = "request rejected"
		}
	case d.Rejection != nil:
		level = slog.LevelWarn
		msg = "request rejected"
	case d.Outcome == OutcomeBypassed:
		level = slog.LevelDebug
		msg = "request bypassed"
	}

	if g.logger.Enabled(ctx, level) {
		attrs := make([]slog.Attr, 0, 12)
		attrs = append(attrs,
			slog.String("request_id", req.RequestID),
			slog.String("ip", req.ClientIP),
			slog.String("user_agent", req.UserAgent),
			slog.String("method", req.Method),
			slog.String("path", d.Path),
			slog.String("outcome", string(d.Outcome)),
		)
		if d.Rejection != nil {
			attrs = append(attrs,
				slog.Int("status", d.Rejection.Status),
				slog.String("code", d.Rejection.Code),
				slog.String("reason", d.Rejection.Reason),
			)
		}
		if res.Attempts > 0 {
			attrs = append(attrs, slog.Int64("attempts", res.Attempts))
		}
		if res.BlockIssued {
			attrs = append(attrs, slog.Bool("block_issued", true))
		}
		if d.Identity != nil {
			attrs = append(attrs,
				slog.String("user_id", d.Identity.ID),
				slog.Bool("cache_hit", res.CacheHit),
			)
		}
		if res.Err != nil {
			attrs = append(attrs, slog.String("error", res.Err.Error()))
		}
		g.logger.LogAttrs(ctx, level, msg, attrs...)
	}

	if g.audit != nil {
		g.auditDecision(ctx, req, res, d)
	}
}

func (g *Guard) countDecision(res flows.EvaluateResult, d Decision) {
	if !g.metrics.Enabled() {
		return
	}

	if res.Err != nil {
		g.metrics.Inc(MetricBackendError)
	}

	switch d.Outcome {
	case OutcomeBypassed:
		g.metrics.Inc(MetricBypassed)
		return
	case OutcomePublicMode:
		g.metrics.Inc(MetricPublicMode)
		return
	case OutcomePublicRoute:
		g.metrics.Inc(MetricPublicRoute)
		return
	case OutcomeAuthenticated:
		g.metrics.Inc(MetricAllowed)
		if res.CacheHit {
			g.metrics.Inc(MetricSessionCacheHit)
		} else {
			g.metrics.Inc(MetricSessionCacheMiss)
		}
		return
	}

	if res.BlockIssued {
		g.metrics.Inc(MetricBlockIssued)
	}
	switch res.Failure {
	case flows.FailureRateLimited:
		g.metrics.Inc(MetricRateLimited)
	case flows.FailureIPBlocked:
		g.metrics.Inc(MetricIPBlocked)
	case flows.FailureMissingAPIKey, flows.FailureMissingSharedSecret:
		g.metrics.Inc(MetricMissingHeader)
	case flows.FailureInvalidAPIKey:
		g.metrics.Inc(MetricInvalidAPIKey)
	default:
		g.metrics.Inc(MetricTokenInvalid)
	}
}

func (g *Guard) auditDecision(ctx context.Context, req Request, res flows.EvaluateResult, d Decision) {
	var eventType string
	switch {
	case d.Outcome == OutcomeAuthenticated:
		eventType = AuditAuthenticated
	case res.BlockIssued:
		eventType = AuditBlockIssued
	case res.Failure == flows.FailureIPBlocked:
		eventType = AuditIPBlocked
	case res.Failure == flows.FailureRateLimited:
		eventType = AuditRateLimited
	case res.Failure == flows.FailureInvalidAPIKey:
		eventType = AuditInvalidAPIKey
	case res.Failure == flows.FailureTokenInvalid:
		eventType = AuditTokenInvalid
	default:
		return
	}

	ev := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		RequestID: req.RequestID,
		IP:        req.ClientIP,
		Method:    req.Method,
		Path:      d.Path,
		Success:   d.Allowed(),
	}
	if d.Identity != nil {
		ev.UserID = d.Identity.ID
		ev.Metadata = map[string]string{"cache_hit": strconv.FormatBool(res.CacheHit)}
	}
	if d.Rejection != nil {
		ev.Error = d.Rejection.Code
		if res.Attempts > 0 {
			ev.Metadata = map[string]string{"attempts": strconv.FormatInt(res.Attempts, 10)}
		}
	}

	g.audit.Emit(ctx, ev)
}
