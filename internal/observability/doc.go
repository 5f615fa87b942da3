// Package observability groups the logging, metrics and tracing helpers
// shared by the vetcare worker.
//
// Subpackages:
//   - logging: slog loggers and dispatch id propagation
//   - metrics: reminder and database metrics
//   - tracing: OpenTelemetry span helpers
package observability
