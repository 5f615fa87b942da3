package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/textproto"
	"time"

	"gopkg.in/mail.v2"
)

// SMTPConfig configures the SMTP mailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Email is one outgoing message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

const defaultSMTPTimeout = 10 * time.Second

// SMTPMailer sends email through an SMTP relay, one connection per message.
type SMTPMailer struct {
	from        string
	timeout     time.Duration
	rateLimiter *RateLimiter
	send        func(timeout time.Duration, m *mail.Message) error
}

// NewSMTPMailer creates a mailer using gopkg.in/mail.v2.
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	base := mail.NewDialer(config.Host, config.Port, config.Username, config.Password)
	base.StartTLSPolicy = mail.OpportunisticStartTLS

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}

	return &SMTPMailer{
		from:        config.From,
		timeout:     timeout,
		rateLimiter: NewRateLimiter(config.RequestsPerSecond, config.Burst),
		send: func(timeout time.Duration, m *mail.Message) error {
			d := *base
			d.Timeout = timeout
			return d.DialAndSend(m)
		},
	}
}

// connTimeout is the configured timeout, shortened to what is left of the
// ctx deadline.
func (s *SMTPMailer) connTimeout(ctx context.Context) time.Duration {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

// Send delivers e. The SMTP dialogue is not context-aware: Send returns on
// ctx expiry, and the connection it leaves behind is closed by its own
// deadline, which never outlives the ctx deadline.
func (s *SMTPMailer) Send(ctx context.Context, e Email) error {
	if e.To == "" {
		return &ClientError{StatusCode: 550, Message: "email recipient is empty"}
	}
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", e.To)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.TextBody)
	if e.HTMLBody != "" {
		m.AddAlternative("text/html", e.HTMLBody)
	}

	timeout := s.connTimeout(ctx)
	if timeout <= 0 {
		return fmt.Errorf("smtp send: %w", context.DeadlineExceeded)
	}

	done := make(chan error, 1)
	go func() { done <- s.send(timeout, m) }()

	select {
	case err := <-done:
		return classifySMTP(err)
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// classifySMTP maps SMTP reply codes: 4yz replies are transient, 5yz permanent.
func classifySMTP(err error) error {
	if err == nil {
		return nil
	}
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		switch {
		case tpErr.Code >= 500:
			return &ClientError{StatusCode: tpErr.Code, Message: "smtp rejected message: " + tpErr.Msg}
		case tpErr.Code >= 400:
			return &ServerError{StatusCode: tpErr.Code, Message: "smtp temporary failure: " + tpErr.Msg}
		}
	}
	return fmt.Errorf("smtp send: %w", err)
}
