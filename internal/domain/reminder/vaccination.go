package reminder

import (
	"time"

	"vetcare/internal/domain/entity"
)

// DefaultIntervalDays is used when a vaccine has no configured interval.
const DefaultIntervalDays = 365

// NextDueAt returns administeredAt plus the vaccine interval in calendar days.
// A nil or non-positive interval falls back to DefaultIntervalDays.
func NextDueAt(administeredAt time.Time, intervalDays *int) time.Time {
	days := DefaultIntervalDays
	if intervalDays != nil && *intervalDays > 0 {
		days = *intervalDays
	}
	return AddDays(administeredAt, days)
}

// MilestoneAt returns the calendar day on which milestone m fires.
func MilestoneAt(nextDue time.Time, m entity.Milestone) time.Time {
	return AddDays(nextDue, int(m))
}

// PendingMilestone picks the milestone that should produce a reminder at now.
//
// Only the latest milestone whose day has arrived is returned, so a
// vaccination discovered long after its due date produces one reminder
// instead of a burst. Earlier milestones that never fired are returned as
// superseded; the caller records them as fired together with m. ok is false
// when the latest arrived milestone has already fired or none has arrived.
func PendingMilestone(nextDue, now time.Time, fired []entity.Milestone, loc *time.Location) (m entity.Milestone, superseded []entity.Milestone, ok bool) {
	isFired := func(x entity.Milestone) bool {
		for _, f := range fired {
			if f == x {
				return true
			}
		}
		return false
	}

	latest := -1
	for i, candidate := range entity.Milestones {
		if DaysUntil(MilestoneAt(nextDue, candidate), now, loc) <= 0 {
			latest = i
		}
	}
	if latest < 0 || isFired(entity.Milestones[latest]) {
		return 0, nil, false
	}

	for _, earlier := range entity.Milestones[:latest] {
		if !isFired(earlier) {
			superseded = append(superseded, earlier)
		}
	}
	return entity.Milestones[latest], superseded, true
}

// ScanHorizon returns the latest next-due date that can have an arrived
// milestone at now. Vaccinations due after it need no attention yet.
func ScanHorizon(now time.Time) time.Time {
	// one extra day absorbs the difference between UTC and the clinic zone
	return AddDays(now, -int(entity.MilestoneAdvance)+1)
}
