package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrInvalidTransition indicates that a status change is not allowed from
	// the record's current status (e.g. cancelling a SENT notification).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrChannelNotRegistered indicates that a notification requested a
	// channel kind with no registered adapter. Dispatch logs and skips it.
	ErrChannelNotRegistered = errors.New("channel not registered")

	// ErrInvalidRegistry indicates a bad channel set passed to NewRegistry.
	ErrInvalidRegistry = errors.New("invalid channel registry")

	// ErrCircuitBreakerOpen indicates that the circuit breaker is open for this channel
	// and sends are being rejected until it half-opens.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)
