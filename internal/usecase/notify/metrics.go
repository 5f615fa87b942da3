package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Prometheus metrics for notification delivery monitoring
var (
	// notificationsCreatedTotal tracks records created through Notify
	notificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notification records created",
		},
		[]string{"type"},
	)

	// notificationDispatchTotal tracks dispatch outcomes
	notificationDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Total number of notification dispatch passes by outcome",
		},
		[]string{"outcome"}, // sent|declined|skipped|not_due|lost_race
	)

	// channelAttemptsTotal tracks per-channel send results
	channelAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_attempts_total",
			Help: "Total number of channel send attempts",
		},
		[]string{"channel", "result"}, // result: accepted|declined|panic
	)

	// channelSendDuration tracks channel send duration
	channelSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_channel_send_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10}, // capped by the send timeout
		},
		[]string{"channel"},
	)

	// channelUnregisteredTotal tracks requested channels without an adapter
	channelUnregisteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_unregistered_total",
			Help: "Total number of sends skipped because the channel is not registered",
		},
		[]string{"channel"},
	)

	// channelDroppedTotal tracks sends rejected before reaching the provider
	channelDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dropped_total",
			Help: "Total number of sends dropped before reaching the provider",
		},
		[]string{"channel", "reason"}, // reason: circuit_open|disabled
	)

	// circuitBreakerState tracks the breaker state per channel (0 closed, 1 half-open, 2 open)
	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_circuit_breaker_state",
			Help: "Circuit breaker state per channel (0 closed, 1 half-open, 2 open)",
		},
		[]string{"channel"},
	)
)

// RecordCreated records a new notification record of the given meta type.
// Records without a type are counted as "generic".
func RecordCreated(metaType string) {
	if metaType == "" {
		metaType = "generic"
	}
	notificationsCreatedTotal.WithLabelValues(metaType).Inc()
}

// RecordDispatchOutcome records the result of one dispatch pass.
func RecordDispatchOutcome(outcome string) {
	notificationDispatchTotal.WithLabelValues(outcome).Inc()
}

// RecordChannelAttempt records a channel send and its duration.
func RecordChannelAttempt(channel, result string, duration time.Duration) {
	channelAttemptsTotal.WithLabelValues(channel, result).Inc()
	channelSendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordUnregistered records a requested channel with no registered adapter.
func RecordUnregistered(channel string) {
	channelUnregisteredTotal.WithLabelValues(channel).Inc()
}

// RecordDropped records a send rejected before the provider was called.
func RecordDropped(channel, reason string) {
	channelDroppedTotal.WithLabelValues(channel, reason).Inc()
}

// SetCircuitBreakerState publishes the breaker state for a channel.
func SetCircuitBreakerState(channel string, state gobreaker.State) {
	circuitBreakerState.WithLabelValues(channel).Set(float64(state))
}
