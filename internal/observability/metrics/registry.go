package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Business metrics track reminder production
var (
	// RemindersCreatedTotal counts reminder notifications created by kind
	RemindersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_created_total",
			Help: "Total number of reminder notifications created",
		},
		[]string{"kind"}, // vaccination_reminder|food_depletion|order_update
	)

	// VaccinationMilestonesFiredTotal counts claimed vaccination milestones
	VaccinationMilestonesFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vaccination_milestones_fired_total",
			Help: "Total number of vaccination milestones that produced a reminder",
		},
		[]string{"milestone"},
	)

	// VaccinationMilestonesSupersededTotal counts milestones skipped because a later one was due
	VaccinationMilestonesSupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vaccination_milestones_superseded_total",
			Help: "Total number of earlier milestones marked fired without a reminder",
		},
	)

	// FeedingPlansActive tracks the number of active feeding plans seen by the last scan
	FeedingPlansActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feeding_plans_active",
			Help: "Number of active feeding plans in the last scan",
		},
	)

	// NotificationsStuck tracks due PENDING notifications older than the stuck threshold
	NotificationsStuck = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_stuck",
			Help: "Number of due pending notifications older than the stuck threshold",
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)
