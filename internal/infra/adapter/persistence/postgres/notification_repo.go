package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vetcare/internal/domain/entity"
)

type NotificationRepo struct{ db DBTX }

func NewNotificationRepo(db DBTX) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, user_id, title, body, meta, channels, status,
created_at, scheduled_for, sent_at, delivered_via, attempts, last_attempt_at, last_error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n                                 entity.Notification
		metaJSON                          []byte
		channels                          string
		status, deliveredVia              string
		scheduledFor, sentAt, lastAttempt sql.NullTime
	)
	if err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Body, &metaJSON, &channels, &status,
		&n.CreatedAt, &scheduledFor, &sentAt, &deliveredVia, &n.Attempts, &lastAttempt, &n.LastError,
	); err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &n.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}
	n.Channels = splitChannels(channels)
	n.Status = entity.NotificationStatus(status)
	n.DeliveredVia = entity.ChannelKind(deliveredVia)
	n.ScheduledFor = nullTimePtr(scheduledFor)
	n.SentAt = nullTimePtr(sentAt)
	n.LastAttemptAt = nullTimePtr(lastAttempt)
	return &n, nil
}

func joinChannels(chs []entity.ChannelKind) string {
	parts := make([]string, len(chs))
	for i, c := range chs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitChannels(s string) []entity.ChannelKind {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]entity.ChannelKind, 0, len(parts))
	for _, p := range parts {
		out = append(out, entity.ChannelKind(strings.TrimSpace(p)))
	}
	return out
}

func (repo *NotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	const query = `
INSERT INTO notifications (id, user_id, title, body, meta, channels, status,
    created_at, scheduled_for, sent_at, delivered_via, attempts, last_attempt_at, last_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	metaJSON, err := json.Marshal(n.Meta)
	if err != nil {
		return fmt.Errorf("Create: marshal meta: %w", err)
	}
	_, err = repo.db.ExecContext(ctx, query,
		n.ID, n.UserID, n.Title, n.Body, metaJSON, joinChannels(n.Channels), string(n.Status),
		n.CreatedAt, n.ScheduledFor, n.SentAt, string(n.DeliveredVia), n.Attempts, n.LastAttemptAt, n.LastError,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) Get(ctx context.Context, id string) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
FROM notifications
WHERE id = $1
LIMIT 1`
	n, err := scanNotification(repo.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return n, nil
}

func (repo *NotificationRepo) TransitionStatus(ctx context.Context, id string, from, to entity.NotificationStatus) (bool, error) {
	const query = `
UPDATE notifications
SET status = $3
WHERE id = $1 AND status = $2`
	res, err := repo.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("TransitionStatus: %w", err)
	}
	return ok, nil
}

func (repo *NotificationRepo) MarkSent(ctx context.Context, id string, via entity.ChannelKind, sentAt time.Time) (bool, error) {
	const query = `
UPDATE notifications
SET status = 'SENT', sent_at = $2, delivered_via = $3, last_error = '',
    dispatch_owner = '', dispatching_until = NULL
WHERE id = $1 AND status = 'PENDING'`
	res, err := repo.db.ExecContext(ctx, query, id, sentAt, string(via))
	if err != nil {
		return false, fmt.Errorf("MarkSent: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("MarkSent: %w", err)
	}
	return ok, nil
}

func (repo *NotificationRepo) ClaimDispatch(ctx context.Context, id, owner string, now, until time.Time) (bool, error) {
	defer observe("claim_dispatch", time.Now())
	const query = `
UPDATE notifications
SET dispatch_owner = $2, dispatching_until = $4
WHERE id = $1 AND status = 'PENDING'
  AND (dispatching_until IS NULL OR dispatching_until <= $3)`
	res, err := repo.db.ExecContext(ctx, query, id, owner, now, until)
	if err != nil {
		return false, fmt.Errorf("ClaimDispatch: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return false, fmt.Errorf("ClaimDispatch: %w", err)
	}
	return ok, nil
}

func (repo *NotificationRepo) ReleaseDispatch(ctx context.Context, id, owner string) error {
	const query = `
UPDATE notifications
SET dispatch_owner = '', dispatching_until = NULL
WHERE id = $1 AND dispatch_owner = $2`
	if _, err := repo.db.ExecContext(ctx, query, id, owner); err != nil {
		return fmt.Errorf("ReleaseDispatch: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) RecordAttempt(ctx context.Context, id string, at time.Time, lastErr string) error {
	const query = `
UPDATE notifications
SET attempts = attempts + 1, last_attempt_at = $2, last_error = $3
WHERE id = $1 AND status = 'PENDING'`
	if _, err := repo.db.ExecContext(ctx, query, id, at, lastErr); err != nil {
		return fmt.Errorf("RecordAttempt: %w", err)
	}
	return nil
}

func (repo *NotificationRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + notificationColumns + `
FROM notifications
WHERE status = 'PENDING' AND (scheduled_for IS NULL OR scheduled_for <= $1)
  AND (dispatching_until IS NULL OR dispatching_until <= $1)
ORDER BY created_at ASC, id ASC
LIMIT $2`
	return repo.list(ctx, "ListDue", query, now, limit)
}

func (repo *NotificationRepo) ListStuck(ctx context.Context, cutoff time.Time) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + `
FROM notifications
WHERE status = 'PENDING' AND GREATEST(created_at, COALESCE(scheduled_for, created_at)) < $1
ORDER BY created_at ASC, id ASC`
	return repo.list(ctx, "ListStuck", query, cutoff)
}

func (repo *NotificationRepo) list(ctx context.Context, op, query string, args ...interface{}) ([]*entity.Notification, error) {
	defer observe(op, time.Now())
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.Notification, 0, 32)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
