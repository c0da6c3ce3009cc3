// Package instrumentation provides OpenTelemetry metrics and tracing for
// whenfree.
//
// It exposes a Provider that owns the meter and tracer providers, and a
// Metrics recorder with instruments for provider API calls, token refreshes,
// schedule aggregations, and MCP tool invocations. Metrics can be exported via
// Prometheus (scrape), OTLP, or stdout; traces via OTLP or stdout.
//
// A zero-value or disabled Provider yields no-op recorders, so callers never
// need nil checks around instrumentation.
package instrumentation
