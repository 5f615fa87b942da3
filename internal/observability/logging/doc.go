// Package logging provides structured logging helpers on top of log/slog.
//
// Loggers are configured from LOG_LEVEL. A dispatch id travels in the context
// so every log line of one notification dispatch can be correlated:
//
//	ctx = logging.WithDispatchID(ctx, uuid.NewString())
//	logging.WithDispatch(ctx, slog.Default()).Info("dispatching")
package logging
