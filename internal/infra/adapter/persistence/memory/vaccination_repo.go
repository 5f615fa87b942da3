package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/domain/reminder"
)

type VaccinationRepo struct {
	mu   sync.RWMutex
	byID map[string]*entity.VaccinationEvent
}

func NewVaccinationRepo() *VaccinationRepo {
	return &VaccinationRepo{byID: make(map[string]*entity.VaccinationEvent)}
}

// Add records an administered vaccination. NextDueAt is derived from the
// administration date and interval when unset.
func (r *VaccinationRepo) Add(ev *entity.VaccinationEvent) error {
	if ev == nil || ev.ID == "" {
		return errors.New("Add: vaccination id required")
	}
	c := cloneVaccination(ev)
	if c.NextDueAt.IsZero() {
		c.NextDueAt = reminder.NextDueAt(c.AdministeredAt, c.IntervalDays)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = c
	return nil
}

func (r *VaccinationRepo) ListClinics(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, ev := range r.byID {
		if _, ok := seen[ev.ClinicID]; ok {
			continue
		}
		seen[ev.ClinicID] = struct{}{}
		out = append(out, ev.ClinicID)
	}
	sort.Strings(out)
	return out, nil
}

func (r *VaccinationRepo) OverdueVaccinations(_ context.Context, clinicID string, horizon time.Time) ([]*entity.VaccinationEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// a booster starts a new cycle, so only the latest event per pet and vaccine counts
	latest := make(map[[2]string]*entity.VaccinationEvent)
	for _, ev := range r.byID {
		if ev.ClinicID != clinicID {
			continue
		}
		key := [2]string{ev.PetID, ev.VaccineID}
		if cur, ok := latest[key]; !ok || ev.AdministeredAt.After(cur.AdministeredAt) {
			latest[key] = ev
		}
	}

	out := make([]*entity.VaccinationEvent, 0)
	for _, ev := range latest {
		if ev.NextDueAt.After(horizon) || ev.HasFired(entity.MilestoneOverdue) {
			continue
		}
		out = append(out, cloneVaccination(ev))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextDueAt.Equal(out[j].NextDueAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextDueAt.Before(out[j].NextDueAt)
	})
	return out, nil
}

func (r *VaccinationRepo) ClaimMilestone(_ context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.byID[vaccinationID]
	if !ok {
		return false, entity.ErrNotFound
	}
	if ev.HasFired(m) {
		return false, nil
	}
	for _, s := range append([]entity.Milestone{m}, superseded...) {
		if !ev.HasFired(s) {
			ev.FiredMilestones = append(ev.FiredMilestones, s)
		}
	}
	return true, nil
}

func (r *VaccinationRepo) ReleaseMilestone(_ context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.byID[vaccinationID]
	if !ok {
		return entity.ErrNotFound
	}
	drop := append([]entity.Milestone{m}, superseded...)
	kept := ev.FiredMilestones[:0]
	for _, f := range ev.FiredMilestones {
		if !containsMilestone(drop, f) {
			kept = append(kept, f)
		}
	}
	ev.FiredMilestones = kept
	return nil
}

// Get returns a copy of the stored event.
func (r *VaccinationRepo) Get(id string) (*entity.VaccinationEvent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return cloneVaccination(ev), true
}

func containsMilestone(ms []entity.Milestone, m entity.Milestone) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func cloneVaccination(ev *entity.VaccinationEvent) *entity.VaccinationEvent {
	c := *ev
	if ev.IntervalDays != nil {
		d := *ev.IntervalDays
		c.IntervalDays = &d
	}
	c.FiredMilestones = append([]entity.Milestone(nil), ev.FiredMilestones...)
	return &c
}
