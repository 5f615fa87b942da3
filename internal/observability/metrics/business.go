package metrics

import (
	"time"
)

// RecordReminderCreated records a reminder notification created for kind.
// Kind is the notification meta type, e.g. "vaccination_reminder".
func RecordReminderCreated(kind string) {
	RemindersCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordMilestoneFired records a claimed vaccination milestone and the number
// of earlier milestones it superseded.
func RecordMilestoneFired(milestone string, superseded int) {
	VaccinationMilestonesFiredTotal.WithLabelValues(milestone).Inc()
	if superseded > 0 {
		VaccinationMilestonesSupersededTotal.Add(float64(superseded))
	}
}

// UpdateFeedingPlansActive sets the number of active plans seen by a scan.
func UpdateFeedingPlansActive(count int) {
	FeedingPlansActive.Set(float64(count))
}

// UpdateNotificationsStuck sets the stuck notification gauge.
// This gauge is refreshed at the end of every pending sweep.
func UpdateNotificationsStuck(count int) {
	NotificationsStuck.Set(float64(count))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "list_due", "claim_milestone").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
