// Package notifier holds the provider clients behind the delivery channels:
// a chat-messaging Cloud API client and an SMTP mailer.
//
// Clients make exactly one provider call per request and report failures as
// typed errors (RateLimitError, ClientError, ServerError). They never retry;
// a failed send leaves the notification pending for the next scheduler tick.
package notifier

import "errors"

// ErrDisabled is returned by the no-op clients used when a provider is not configured.
var ErrDisabled = errors.New("notifier: provider disabled")
