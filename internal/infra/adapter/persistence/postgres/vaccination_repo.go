package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/domain/reminder"
)

type VaccinationRepo struct{ db DBTX }

func NewVaccinationRepo(db DBTX) *VaccinationRepo {
	return &VaccinationRepo{db: db}
}

func (repo *VaccinationRepo) ListClinics(ctx context.Context) ([]string, error) {
	const query = `
SELECT DISTINCT p.clinic_id
FROM vaccinations v
JOIN pets p ON p.id = v.pet_id
ORDER BY p.clinic_id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListClinics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	clinics := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListClinics: %w", err)
		}
		clinics = append(clinics, id)
	}
	return clinics, rows.Err()
}

// OverdueVaccinations keeps only the latest vaccination per pet and vaccine:
// a booster opens a new due cycle and retires the previous one.
func (repo *VaccinationRepo) OverdueVaccinations(ctx context.Context, clinicID string, horizon time.Time) ([]*entity.VaccinationEvent, error) {
	defer observe("overdue_vaccinations", time.Now())
	const query = `
SELECT id, clinic_id, pet_id, pet_name, owner_id, vaccine_id, vaccine_name,
       interval_days, administered_at, array_to_string(fired_milestones, ',')
FROM (
    SELECT DISTINCT ON (v.pet_id, v.vaccine_id)
           v.id, p.clinic_id, v.pet_id, p.name AS pet_name, p.owner_id,
           v.vaccine_id, vc.name AS vaccine_name, vc.interval_days,
           v.administered_at, v.fired_milestones
    FROM vaccinations v
    JOIN pets p ON p.id = v.pet_id
    JOIN vaccines vc ON vc.id = v.vaccine_id
    WHERE p.clinic_id = $1
    ORDER BY v.pet_id, v.vaccine_id, v.administered_at DESC
) latest
WHERE latest.administered_at
      + make_interval(days => CASE WHEN latest.interval_days > 0 THEN latest.interval_days ELSE $3 END) <= $2
  AND NOT ($4 = ANY(latest.fired_milestones))
ORDER BY latest.administered_at ASC, latest.id ASC`

	rows, err := repo.db.QueryContext(ctx, query, clinicID, horizon, reminder.DefaultIntervalDays, int(entity.MilestoneOverdue))
	if err != nil {
		return nil, fmt.Errorf("OverdueVaccinations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]*entity.VaccinationEvent, 0, 16)
	for rows.Next() {
		var (
			ev       entity.VaccinationEvent
			interval sql.NullInt64
			fired    string
		)
		if err := rows.Scan(
			&ev.ID, &ev.ClinicID, &ev.PetID, &ev.PetName, &ev.OwnerID, &ev.VaccineID, &ev.VaccineName,
			&interval, &ev.AdministeredAt, &fired,
		); err != nil {
			return nil, fmt.Errorf("OverdueVaccinations: %w", err)
		}
		if interval.Valid {
			d := int(interval.Int64)
			ev.IntervalDays = &d
		}
		ev.NextDueAt = reminder.NextDueAt(ev.AdministeredAt, ev.IntervalDays)
		ev.FiredMilestones, err = parseMilestones(fired)
		if err != nil {
			return nil, fmt.Errorf("OverdueVaccinations: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (repo *VaccinationRepo) ClaimMilestone(ctx context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) (bool, error) {
	defer observe("claim_milestone", time.Now())
	const query = `
UPDATE vaccinations
SET fired_milestones = ARRAY(SELECT DISTINCT unnest(fired_milestones || $2::int[]) ORDER BY 1)
WHERE id = $1 AND NOT ($3 = ANY(fired_milestones))`
	claim := append([]entity.Milestone{m}, superseded...)
	res, err := repo.db.ExecContext(ctx, query, vaccinationID, milestoneArray(claim), int(m))
	if err != nil {
		return false, fmt.Errorf("ClaimMilestone: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("ClaimMilestone: %w", err)
	}
	return ok, nil
}

func (repo *VaccinationRepo) ReleaseMilestone(ctx context.Context, vaccinationID string, m entity.Milestone, superseded []entity.Milestone) error {
	const query = `
UPDATE vaccinations
SET fired_milestones = ARRAY(SELECT f FROM unnest(fired_milestones) AS f WHERE f <> ALL($2::int[]) ORDER BY 1)
WHERE id = $1`
	release := append([]entity.Milestone{m}, superseded...)
	if _, err := repo.db.ExecContext(ctx, query, vaccinationID, milestoneArray(release)); err != nil {
		return fmt.Errorf("ReleaseMilestone: %w", err)
	}
	return nil
}

// milestoneArray renders ms as a Postgres array literal, e.g. "{-7,0}".
func milestoneArray(ms []entity.Milestone) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = strconv.Itoa(int(m))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func parseMilestones(s string) ([]entity.Milestone, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]entity.Milestone, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse fired milestone %q: %w", p, err)
		}
		out = append(out, entity.Milestone(v))
	}
	return out, nil
}
