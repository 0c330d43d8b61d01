// Package telemetry provides structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the sync engine.
//
// All collaborators are optional: a nil *Metrics or *Tracer is safe to call,
// and Discard returns a logger that drops everything. Components take the
// telemetry handles they need and never construct their own.
package telemetry
