package notifier

import "context"

// NoopChat stands in for ChatClient when the chat provider is not configured.
// Every send fails with ErrDisabled, so the dispatcher moves on to the next channel.
type NoopChat struct{}

func (NoopChat) SendText(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

func (NoopChat) SendTemplate(context.Context, string, ChatTemplate) (string, error) {
	return "", ErrDisabled
}

// NoopMailer stands in for SMTPMailer when SMTP is not configured.
type NoopMailer struct{}

func (NoopMailer) Send(context.Context, Email) error {
	return ErrDisabled
}
