package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vetcare/internal/domain/entity"
)

type ContactRepo struct{ db DBTX }

func NewContactRepo(db DBTX) *ContactRepo {
	return &ContactRepo{db: db}
}

func (repo *ContactRepo) ContactFor(ctx context.Context, userID string) (*entity.Contact, error) {
	const query = `
SELECT user_id, COALESCE(chat_address, ''), chat_opt_in, COALESCE(email, '')
FROM user_contacts
WHERE user_id = $1
LIMIT 1`
	var c entity.Contact
	err := repo.db.QueryRowContext(ctx, query, userID).Scan(&c.UserID, &c.ChatAddress, &c.ChatOptIn, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ContactFor: %w", err)
	}
	return &c, nil
}

type InboxRepo struct{ db DBTX }

func NewInboxRepo(db DBTX) *InboxRepo {
	return &InboxRepo{db: db}
}

func (repo *InboxRepo) AddInboxItem(ctx context.Context, item *entity.InboxItem) error {
	const query = `
INSERT INTO inbox_items (id, user_id, title, body, type, read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := repo.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.Title, item.Body, string(item.Type), item.Read, item.CreatedAt,
	); err != nil {
		return fmt.Errorf("AddInboxItem: %w", err)
	}
	return nil
}

func (repo *InboxRepo) ListInbox(ctx context.Context, userID string, limit int) ([]*entity.InboxItem, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, user_id, title, body, type, read, created_at
FROM inbox_items
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListInbox: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*entity.InboxItem, 0, limit)
	for rows.Next() {
		var (
			item     entity.InboxItem
			itemType string
		)
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Body, &itemType, &item.Read, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListInbox: %w", err)
		}
		item.Type = entity.MetaType(itemType)
		items = append(items, &item)
	}
	return items, rows.Err()
}
