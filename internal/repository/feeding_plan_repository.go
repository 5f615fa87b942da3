package repository

import (
	"context"

	"vetcare/internal/domain/entity"
)

// FeedingPlanRepository persists feeding plans and their one-shot reminder guard.
type FeedingPlanRepository interface {
	// ActiveFeedingPlans returns every plan with Active set.
	ActiveFeedingPlans(ctx context.Context) ([]*entity.FeedingPlan, error)

	// Get returns the plan with the given id or entity.ErrNotFound.
	Get(ctx context.Context, id string) (*entity.FeedingPlan, error)

	// Update stores the plan's mutable fields, including NotificationSent.
	Update(ctx context.Context, plan *entity.FeedingPlan) error

	// MarkNotified sets NotificationSent on an active plan.
	// Returns false when it was already set.
	MarkNotified(ctx context.Context, planID string) (bool, error)

	// ClearNotified resets NotificationSent after a failed reminder.
	ClearNotified(ctx context.Context, planID string) error
}
