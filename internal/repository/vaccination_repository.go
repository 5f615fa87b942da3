package repository

import (
	"context"
	"time"

	"vetcare/internal/domain/entity"
)

// VaccinationRepository reads vaccination events and records which reminder
// milestones have fired.
type VaccinationRepository interface {
	// ListClinics returns the identifiers of all clinics with vaccination records.
	ListClinics(ctx context.Context) ([]string, error)

	// OverdueVaccinations returns the latest vaccination per (pet, vaccine) in
	// the clinic whose next due date is on or before horizon and whose last
	// milestone has not fired yet.
	OverdueVaccinations(ctx context.Context, clinicID string, horizon time.Time) ([]*entity.VaccinationEvent, error)

	// ClaimMilestone records m, plus any superseded milestones, as fired.
	// Returns false when m was already recorded.
	ClaimMilestone(ctx context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) (bool, error)

	// ReleaseMilestone undoes a claim whose notification could not be created.
	ReleaseMilestone(ctx context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) error
}
