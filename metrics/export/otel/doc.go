// Package otel binds session counters to OpenTelemetry observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per session counter and
// one Int64ObservableGauge per histogram bucket. A single callback reads a
// snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate session state.
package otel
