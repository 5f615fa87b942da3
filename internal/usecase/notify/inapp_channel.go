package notify

import (
	"context"
	"log/slog"
	"time"

	"vetcare/internal/domain/entity"
	"vetcare/internal/observability/logging"
	"vetcare/internal/repository"

	"github.com/google/uuid"
)

// InAppChannel writes notifications to the user's in-app feed. It has no
// prerequisites, so it is the usual last entry of a channel list.
type InAppChannel struct {
	inbox repository.InboxRepository
	now   func() time.Time
}

// NewInAppChannel creates the IN_APP adapter.
func NewInAppChannel(inbox repository.InboxRepository) *InAppChannel {
	return &InAppChannel{inbox: inbox, now: time.Now}
}

// Kind returns entity.ChannelInApp.
func (c *InAppChannel) Kind() entity.ChannelKind {
	return entity.ChannelInApp
}

// Send implements Channel.
func (c *InAppChannel) Send(ctx context.Context, userID, title, body string, meta entity.Meta) bool {
	msg := render(title, body, meta)
	item := &entity.InboxItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     msg.Subject,
		Body:      msg.Text,
		Type:      meta.Type,
		CreatedAt: c.now(),
	}
	if err := c.inbox.AddInboxItem(ctx, item); err != nil {
		logging.WithDispatch(ctx, slog.Default()).Warn("in-app write failed",
			slog.String("channel", string(entity.ChannelInApp)),
			slog.String("user_id", userID),
			slog.Any("error", err))
		return false
	}
	return true
}
