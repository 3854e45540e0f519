// Package otel publishes service counters through OpenTelemetry.
//
// [NewExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket, all fed by a single callback
// that reads the service snapshot on each collection. The caller owns the
// MeterProvider.
package otel
