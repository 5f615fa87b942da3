package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vetcare/internal/domain/entity"
)

type FeedingPlanRepo struct{ db DBTX }

func NewFeedingPlanRepo(db DBTX) *FeedingPlanRepo {
	return &FeedingPlanRepo{db: db}
}

const feedingPlanSelect = `
SELECT f.id, f.pet_id, p.name, p.owner_id, f.product_id, f.product_name,
       f.pet_weight_kg, f.package_size_grams, f.daily_grams_recommended,
       f.start_date, f.expected_depletion_date, f.estimated_days_left,
       f.notification_sent, f.active, f.updated_at
FROM feeding_plans f
JOIN pets p ON p.id = f.pet_id`

func scanFeedingPlan(row rowScanner) (*entity.FeedingPlan, error) {
	var p entity.FeedingPlan
	if err := row.Scan(
		&p.ID, &p.PetID, &p.PetName, &p.OwnerID, &p.ProductID, &p.ProductName,
		&p.PetWeightKg, &p.PackageSizeGrams, &p.DailyGramsRecommended,
		&p.StartDate, &p.ExpectedDepletionDate, &p.EstimatedDaysLeft,
		&p.NotificationSent, &p.Active, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (repo *FeedingPlanRepo) ActiveFeedingPlans(ctx context.Context) ([]*entity.FeedingPlan, error) {
	defer observe("active_feeding_plans", time.Now())
	query := feedingPlanSelect + `
WHERE f.active = TRUE
ORDER BY f.id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ActiveFeedingPlans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	plans := make([]*entity.FeedingPlan, 0, 32)
	for rows.Next() {
		p, err := scanFeedingPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("ActiveFeedingPlans: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (repo *FeedingPlanRepo) Get(ctx context.Context, id string) (*entity.FeedingPlan, error) {
	query := feedingPlanSelect + `
WHERE f.id = $1
LIMIT 1`
	p, err := scanFeedingPlan(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (repo *FeedingPlanRepo) Update(ctx context.Context, plan *entity.FeedingPlan) error {
	const query = `
UPDATE feeding_plans
SET product_id = $2, product_name = $3, pet_weight_kg = $4, package_size_grams = $5,
    daily_grams_recommended = $6, start_date = $7, expected_depletion_date = $8,
    estimated_days_left = $9, notification_sent = $10, active = $11, updated_at = now()
WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query,
		plan.ID, plan.ProductID, plan.ProductName, plan.PetWeightKg, plan.PackageSizeGrams,
		plan.DailyGramsRecommended, plan.StartDate, plan.ExpectedDepletionDate,
		plan.EstimatedDaysLeft, plan.NotificationSent, plan.Active,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if !ok {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *FeedingPlanRepo) MarkNotified(ctx context.Context, planID string) (bool, error) {
	defer observe("mark_notified", time.Now())
	const query = `
UPDATE feeding_plans
SET notification_sent = TRUE, updated_at = now()
WHERE id = $1 AND active = TRUE AND notification_sent = FALSE`
	res, err := repo.db.ExecContext(ctx, query, planID)
	if err != nil {
		return false, fmt.Errorf("MarkNotified: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("MarkNotified: %w", err)
	}
	return ok, nil
}

func (repo *FeedingPlanRepo) ClearNotified(ctx context.Context, planID string) error {
	const query = `
UPDATE feeding_plans
SET notification_sent = FALSE, updated_at = now()
WHERE id = $1`
	if _, err := repo.db.ExecContext(ctx, query, planID); err != nil {
		return fmt.Errorf("ClearNotified: %w", err)
	}
	return nil
}
