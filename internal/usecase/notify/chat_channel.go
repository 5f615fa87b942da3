package notify

import (
	"context"
	"errors"
	"log/slog"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/notifier"
	"vetcare/internal/observability/logging"
	"vetcare/internal/repository"
	"vetcare/internal/resilience/circuitbreaker"

	"github.com/sony/gobreaker"
)

// ChatSender is the chat-messaging provider used by ChatChannel.
// *notifier.ChatClient and notifier.NoopChat satisfy it.
type ChatSender interface {
	SendText(ctx context.Context, to, text string) (string, error)
	SendTemplate(ctx context.Context, to string, tmpl notifier.ChatTemplate) (string, error)
}

// ChatChannel delivers notifications through the chat-messaging provider.
// Recipients need a chat address and an explicit opt-in.
type ChatChannel struct {
	sender   ChatSender
	contacts repository.ContactRepository
	guard    *providerGuard
}

// NewChatChannel creates the CHAT adapter.
func NewChatChannel(sender ChatSender, contacts repository.ContactRepository, listeners ...circuitbreaker.StateChangeFunc) *ChatChannel {
	return &ChatChannel{
		sender:   sender,
		contacts: contacts,
		guard:    newProviderGuard(entity.ChannelChat, listeners...),
	}
}

// Kind returns entity.ChannelChat.
func (c *ChatChannel) Kind() entity.ChannelKind {
	return entity.ChannelChat
}

// BreakerState reports the provider circuit breaker state.
func (c *ChatChannel) BreakerState() gobreaker.State {
	return c.guard.state()
}

// Send implements Channel. Known meta types go out as provider templates,
// everything else as a free-form text message.
func (c *ChatChannel) Send(ctx context.Context, userID, title, body string, meta entity.Meta) bool {
	logger := logging.WithDispatch(ctx, slog.Default()).With(
		slog.String("channel", string(entity.ChannelChat)),
		slog.String("user_id", userID))

	contact, ok := resolveContact(ctx, logger, c.contacts, userID)
	if !ok {
		return false
	}
	if !contact.CanChat() {
		logger.Debug("chat unavailable for recipient",
			slog.Bool("has_address", contact.ChatAddress != ""),
			slog.Bool("opt_in", contact.ChatOptIn))
		return false
	}

	var messageID string
	err := c.guard.call(func() error {
		var err error
		if tmpl, ok := chatTemplate(meta); ok {
			messageID, err = c.sender.SendTemplate(ctx, contact.ChatAddress, tmpl)
		} else {
			messageID, err = c.sender.SendText(ctx, contact.ChatAddress, chatText(render(title, body, meta)))
		}
		return err
	})
	if err != nil {
		logSendFailure(logger, err)
		return false
	}

	logger.Debug("chat message accepted", slog.String("message_id", messageID))
	return true
}

// resolveContact loads the recipient's contact record. A missing record is
// routine and logged at debug level.
func resolveContact(ctx context.Context, logger *slog.Logger, contacts repository.ContactRepository, userID string) (*entity.Contact, bool) {
	contact, err := contacts.ContactFor(ctx, userID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			logger.Debug("no contact record for recipient")
		} else {
			logger.Warn("contact lookup failed", slog.Any("error", err))
		}
		return nil, false
	}
	return contact, true
}

// logSendFailure logs a provider failure at a level matching its cause.
func logSendFailure(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, notifier.ErrDisabled):
		logger.Debug("provider disabled")
	case errors.Is(err, ErrCircuitBreakerOpen):
		logger.Debug("provider circuit open", slog.Any("error", err))
	default:
		logger.Warn("provider send failed", slog.Any("error", err))
	}
}
