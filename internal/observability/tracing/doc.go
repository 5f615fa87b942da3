// Package tracing provides OpenTelemetry helpers.
//
// Spans are created through the globally registered tracer provider; the
// worker keeps the default no-op provider unless an exporter is installed.
package tracing
