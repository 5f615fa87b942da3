package entity

import (
	"fmt"
	"time"
)

// Milestone is a reminder offset in days relative to a vaccination's next due date.
type Milestone int

const (
	MilestoneAdvance  Milestone = -7
	MilestoneLastCall Milestone = -1
	MilestoneDue      Milestone = 0
	MilestoneOverdue  Milestone = 7
)

// Milestones lists the reminder cadence in chronological order.
var Milestones = []Milestone{MilestoneAdvance, MilestoneLastCall, MilestoneDue, MilestoneOverdue}

// String renders the offset as "due-7d", "due", "due+7d".
func (m Milestone) String() string {
	switch {
	case m == 0:
		return "due"
	case m < 0:
		return fmt.Sprintf("due%dd", int(m))
	default:
		return fmt.Sprintf("due+%dd", int(m))
	}
}

// VaccinationEvent is the reminder-relevant projection of one administered
// vaccination. A booster creates a new event, which starts a new due cycle.
type VaccinationEvent struct {
	ID          string
	ClinicID    string
	PetID       string
	PetName     string
	OwnerID     string
	VaccineID   string
	VaccineName string

	// IntervalDays is the vaccine's configured interval; nil when the vaccine has none.
	IntervalDays   *int
	AdministeredAt time.Time
	NextDueAt      time.Time

	// FiredMilestones records which milestones already produced a reminder.
	FiredMilestones []Milestone
}

// HasFired reports whether m is recorded as fired.
func (v *VaccinationEvent) HasFired(m Milestone) bool {
	for _, f := range v.FiredMilestones {
		if f == m {
			return true
		}
	}
	return false
}
