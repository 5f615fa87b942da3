package notify

import (
	"context"
	"log/slog"

	"vetcare/internal/domain/entity"
	"vetcare/internal/infra/notifier"
	"vetcare/internal/observability/logging"
	"vetcare/internal/repository"
	"vetcare/internal/resilience/circuitbreaker"

	"github.com/sony/gobreaker"
)

// Mailer sends one email. *notifier.SMTPMailer and notifier.NoopMailer satisfy it.
type Mailer interface {
	Send(ctx context.Context, e notifier.Email) error
}

// EmailChannel delivers notifications by email.
type EmailChannel struct {
	mailer   Mailer
	contacts repository.ContactRepository
	guard    *providerGuard
}

// NewEmailChannel creates the EMAIL adapter.
func NewEmailChannel(mailer Mailer, contacts repository.ContactRepository, listeners ...circuitbreaker.StateChangeFunc) *EmailChannel {
	return &EmailChannel{
		mailer:   mailer,
		contacts: contacts,
		guard:    newProviderGuard(entity.ChannelEmail, listeners...),
	}
}

// Kind returns entity.ChannelEmail.
func (c *EmailChannel) Kind() entity.ChannelKind {
	return entity.ChannelEmail
}

// BreakerState reports the provider circuit breaker state.
func (c *EmailChannel) BreakerState() gobreaker.State {
	return c.guard.state()
}

// Send implements Channel.
func (c *EmailChannel) Send(ctx context.Context, userID, title, body string, meta entity.Meta) bool {
	logger := logging.WithDispatch(ctx, slog.Default()).With(
		slog.String("channel", string(entity.ChannelEmail)),
		slog.String("user_id", userID))

	contact, ok := resolveContact(ctx, logger, c.contacts, userID)
	if !ok {
		return false
	}
	if !contact.CanEmail() {
		logger.Debug("email unavailable for recipient")
		return false
	}

	msg := render(title, body, meta)
	err := c.guard.call(func() error {
		return c.mailer.Send(ctx, notifier.Email{
			To:       contact.Email,
			Subject:  msg.Subject,
			TextBody: msg.Text,
			HTMLBody: msg.HTML,
		})
	})
	if err != nil {
		logSendFailure(logger, err)
		return false
	}

	logger.Debug("email accepted")
	return true
}
