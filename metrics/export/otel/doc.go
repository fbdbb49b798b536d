// Package otel publishes guard counters and the latency histogram through
// OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per guard counter and
// an Int64ObservableGauge per histogram bucket. One callback reads
// [goGuard.Guard.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate guard state.
package otel
