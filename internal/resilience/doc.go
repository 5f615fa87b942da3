// Package resilience groups the fault tolerance helpers used by the worker.
//
//   - circuitbreaker: per-channel breakers around provider adapters and a
//     breaker around the database handle
//   - retry: exponential backoff with jitter for store writes and startup pings
//
// Channel sends are deliberately not retried in-process; a declined send
// leaves the notification pending for the next scheduler tick.
package resilience
