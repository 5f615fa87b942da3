package repository

import (
	"context"

	"vetcare/internal/domain/entity"
)

// ContactRepository resolves delivery addresses for a user.
type ContactRepository interface {
	// ContactFor returns the user's contact record or entity.ErrNotFound.
	ContactFor(ctx context.Context, userID string) (*entity.Contact, error)
}

// InboxRepository stores in-app notification feed entries.
type InboxRepository interface {
	AddInboxItem(ctx context.Context, item *entity.InboxItem) error
	ListInbox(ctx context.Context, userID string, limit int) ([]*entity.InboxItem, error)
}
