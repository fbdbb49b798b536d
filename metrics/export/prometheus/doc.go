// Package prometheus renders guard metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [goGuard.Guard] and exposes an
// [http.Handler] for a /metrics route. Counter names are goguard_*_total; the
// single histogram is goguard_evaluate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate guard state.
package prometheus
