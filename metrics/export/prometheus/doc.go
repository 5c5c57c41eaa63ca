// Package prometheus exposes session metrics through client_golang.
//
// [Collector] implements prometheus.Collector over a [goSession.Session]
// snapshot. Counter names are prefixed gosession_ and end in _total; the
// single histogram is gosession_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     Collector themselves or mount [Collector.Handler], which uses a private
//     registry.
//   - Mutate session state.
package prometheus
