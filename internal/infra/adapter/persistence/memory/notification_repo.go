package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"vetcare/internal/domain/entity"
)

type NotificationRepo struct {
	mu     sync.RWMutex
	byID   map[string]*entity.Notification
	leases map[string]dispatchLease
}

type dispatchLease struct {
	owner string
	until time.Time
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{
		byID:   make(map[string]*entity.Notification),
		leases: make(map[string]dispatchLease),
	}
}

func (r *NotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	if n == nil || n.ID == "" {
		return errors.New("Create: notification id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[n.ID]; exists {
		return errors.New("Create: notification already exists")
	}
	r.byID[n.ID] = cloneNotification(n)
	return nil
}

func (r *NotificationRepo) Get(_ context.Context, id string) (*entity.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneNotification(n), nil
}

func (r *NotificationRepo) TransitionStatus(_ context.Context, id string, from, to entity.NotificationStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.Status != from {
		return false, nil
	}
	n.Status = to
	return true, nil
}

func (r *NotificationRepo) MarkSent(_ context.Context, id string, via entity.ChannelKind, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.Status != entity.StatusPending {
		return false, nil
	}
	n.Status = entity.StatusSent
	n.SentAt = &sentAt
	n.DeliveredVia = via
	n.LastError = ""
	delete(r.leases, id)
	return true, nil
}

func (r *NotificationRepo) ClaimDispatch(_ context.Context, id, owner string, now, until time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.Status != entity.StatusPending {
		return false, nil
	}
	if l, held := r.leases[id]; held && l.until.After(now) {
		return false, nil
	}
	r.leases[id] = dispatchLease{owner: owner, until: until}
	return true, nil
}

func (r *NotificationRepo) ReleaseDispatch(_ context.Context, id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, held := r.leases[id]; held && l.owner == owner {
		delete(r.leases, id)
	}
	return nil
}

func (r *NotificationRepo) RecordAttempt(_ context.Context, id string, at time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[id]
	if !ok || n.Status != entity.StatusPending {
		return nil
	}
	n.Attempts++
	n.LastAttemptAt = &at
	n.LastError = lastErr
	return nil
}

func (r *NotificationRepo) ListDue(_ context.Context, now time.Time, limit int) ([]*entity.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Notification, 0)
	for _, n := range r.byID {
		if n.Status != entity.StatusPending || !n.IsDue(now) {
			continue
		}
		if l, held := r.leases[n.ID]; held && l.until.After(now) {
			continue
		}
		out = append(out, cloneNotification(n))
	}
	sortOldestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationRepo) ListStuck(_ context.Context, cutoff time.Time) ([]*entity.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.Notification, 0)
	for _, n := range r.byID {
		if n.Status != entity.StatusPending {
			continue
		}
		since := n.CreatedAt
		if n.ScheduledFor != nil && n.ScheduledFor.After(since) {
			since = *n.ScheduledFor
		}
		if since.Before(cutoff) {
			out = append(out, cloneNotification(n))
		}
	}
	sortOldestFirst(out)
	return out, nil
}

func sortOldestFirst(ns []*entity.Notification) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].ID < ns[j].ID
		}
		return ns[i].CreatedAt.Before(ns[j].CreatedAt)
	})
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	c := *n
	c.Channels = append([]entity.ChannelKind(nil), n.Channels...)
	if n.Meta.Fields != nil {
		c.Meta.Fields = make(map[string]string, len(n.Meta.Fields))
		for k, v := range n.Meta.Fields {
			c.Meta.Fields[k] = v
		}
	}
	c.ScheduledFor = cloneTime(n.ScheduledFor)
	c.SentAt = cloneTime(n.SentAt)
	c.LastAttemptAt = cloneTime(n.LastAttemptAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
