package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"vetcare/internal/domain/entity"
)

type ContactRepo struct {
	mu     sync.RWMutex
	byUser map[string]entity.Contact
}

func NewContactRepo() *ContactRepo {
	return &ContactRepo{byUser: make(map[string]entity.Contact)}
}

// Set stores or replaces the contact of c.UserID.
func (r *ContactRepo) Set(c entity.Contact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[c.UserID] = c
}

func (r *ContactRepo) ContactFor(_ context.Context, userID string) (*entity.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[userID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return &c, nil
}

type InboxRepo struct {
	mu    sync.RWMutex
	items []entity.InboxItem
}

func NewInboxRepo() *InboxRepo {
	return &InboxRepo{}
}

func (r *InboxRepo) AddInboxItem(_ context.Context, item *entity.InboxItem) error {
	if item == nil || item.UserID == "" {
		return errors.New("AddInboxItem: user id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *item)
	return nil
}

// ListInbox returns the user's items, newest first.
func (r *InboxRepo) ListInbox(_ context.Context, userID string, limit int) ([]*entity.InboxItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.InboxItem, 0)
	for i := range r.items {
		if r.items[i].UserID == userID {
			item := r.items[i]
			out = append(out, &item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
