package repository

import (
	"context"
	"time"

	"vetcare/internal/domain/entity"
)

// NotificationRepository persists notification records and their status
// transitions. Status-changing methods are conditional: they apply only when
// the stored status matches the expected one, and report whether they did.
type NotificationRepository interface {
	// Create inserts n. The caller assigns ID and CreatedAt.
	Create(ctx context.Context, n *entity.Notification) error

	// Get returns the notification with the given id.
	// Returns entity.ErrNotFound when no such record exists.
	Get(ctx context.Context, id string) (*entity.Notification, error)

	// TransitionStatus moves the record from status `from` to `to`.
	// Returns false (and no error) when the record is missing or its status
	// is no longer `from`.
	TransitionStatus(ctx context.Context, id string, from, to entity.NotificationStatus) (bool, error)

	// MarkSent moves a PENDING record to SENT, stamping sentAt and the
	// accepting channel, and drops any dispatch lease. Returns false when the
	// record is no longer PENDING.
	MarkSent(ctx context.Context, id string, via entity.ChannelKind, sentAt time.Time) (bool, error)

	// ClaimDispatch leases a PENDING record to the dispatch pass identified
	// by owner until the given time. Returns false when the record is not
	// PENDING or another pass holds a lease that has not expired at now.
	// Only the lease holder may call a channel.
	ClaimDispatch(ctx context.Context, id, owner string, now, until time.Time) (bool, error)

	// ReleaseDispatch clears the lease if owner still holds it.
	ReleaseDispatch(ctx context.Context, id, owner string) error

	// RecordAttempt notes a dispatch pass in which every channel declined.
	// It increments the attempt counter of a PENDING record only.
	RecordAttempt(ctx context.Context, id string, at time.Time, lastErr string) error

	// ListDue returns PENDING records whose scheduled time is unset or not
	// after now and that no unexpired dispatch lease holds, oldest first, at
	// most limit records.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Notification, error)

	// ListStuck returns due PENDING records that became due before cutoff.
	ListStuck(ctx context.Context, cutoff time.Time) ([]*entity.Notification, error)
}
