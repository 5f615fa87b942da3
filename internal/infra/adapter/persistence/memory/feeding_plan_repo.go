package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"vetcare/internal/domain/entity"
)

type FeedingPlanRepo struct {
	mu   sync.RWMutex
	byID map[string]entity.FeedingPlan
}

func NewFeedingPlanRepo() *FeedingPlanRepo {
	return &FeedingPlanRepo{byID: make(map[string]entity.FeedingPlan)}
}

// Add stores a new plan.
func (r *FeedingPlanRepo) Add(plan *entity.FeedingPlan) error {
	if plan == nil || plan.ID == "" {
		return errors.New("Add: feeding plan id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[plan.ID]; exists {
		return errors.New("Add: feeding plan already exists")
	}
	r.byID[plan.ID] = *plan
	return nil
}

func (r *FeedingPlanRepo) ActiveFeedingPlans(_ context.Context) ([]*entity.FeedingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.FeedingPlan, 0)
	for _, p := range r.byID {
		if !p.Active {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *FeedingPlanRepo) Get(_ context.Context, id string) (*entity.FeedingPlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &p, nil
}

func (r *FeedingPlanRepo) Update(_ context.Context, plan *entity.FeedingPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[plan.ID]; !ok {
		return entity.ErrNotFound
	}
	r.byID[plan.ID] = *plan
	return nil
}

func (r *FeedingPlanRepo) MarkNotified(_ context.Context, planID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[planID]
	if !ok {
		return false, entity.ErrNotFound
	}
	if p.NotificationSent || !p.Active {
		return false, nil
	}
	p.NotificationSent = true
	r.byID[planID] = p
	return true, nil
}

func (r *FeedingPlanRepo) ClearNotified(_ context.Context, planID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[planID]
	if !ok {
		return entity.ErrNotFound
	}
	p.NotificationSent = false
	r.byID[planID] = p
	return nil
}
