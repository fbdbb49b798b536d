package goGuard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// auditDispatcher moves events off the request path onto a single worker
// that feeds the sink in order.
type auditDispatcher struct {
	sink       AuditSink
	logger     *slog.Logger
	dropIfFull bool

	queue chan AuditEvent
	quit  chan struct{}
	idle  chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	dropped  atomic.Uint64
	panics   atomic.Uint64
	dropWarn rate.Sometimes
}

// newAuditDispatcher returns nil when audit is disabled. All methods accept a
// nil receiver.
func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *slog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	d := &auditDispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, max(cfg.BufferSize, 1)),
		quit:       make(chan struct{}),
		idle:       make(chan struct{}),
		dropWarn:   rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	go d.run()
	return d
}

func (d *auditDispatcher) run() {
	defer close(d.idle)
	for event := range d.queue {
		d.deliver(event)
	}
}

// deliver shields the worker from a misbehaving sink.
func (d *auditDispatcher) deliver(event AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.logger.Error("audit sink panicked", "event_type", event.EventType, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), event)
}

// Emit queues event. With DropIfFull it never blocks and counts what it
// discards; otherwise it waits for space, ctx or Close.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			n := d.dropped.Add(1)
			d.dropWarn.Do(func() {
				d.logger.Warn("audit queue full, dropping events", "dropped_total", n)
			})
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close wakes blocked emitters, flushes everything already queued into the
// sink and waits for the worker. It is idempotent.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	<-d.idle
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics counts events lost to a panicking sink.
func (d *auditDispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panics.Load()
}
