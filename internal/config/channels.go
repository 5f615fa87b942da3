// Package config loads the worker's provider credentials and reference data.
package config

import (
	"errors"
	"fmt"
	"time"

	"vetcare/internal/infra/notifier"
	pkgconfig "vetcare/internal/pkg/config"

	"github.com/kelseyhightower/envconfig"
)

// ChatSettings configures the chat-messaging provider. Variables are
// prefixed with CHAT_, e.g. CHAT_ACCESS_TOKEN.
type ChatSettings struct {
	Enabled           bool          `envconfig:"ENABLED" default:"false"`
	APIURL            string        `envconfig:"API_URL" default:"https://graph.facebook.com/v19.0"`
	PhoneNumberID     string        `envconfig:"PHONE_NUMBER_ID"`
	AccessToken       string        `envconfig:"ACCESS_TOKEN"`
	LanguageCode      string        `envconfig:"LANGUAGE_CODE" default:"en"`
	Timeout           time.Duration `envconfig:"TIMEOUT" default:"10s"`
	RequestsPerSecond float64       `envconfig:"RPS" default:"20"`
	Burst             int           `envconfig:"BURST" default:"5"`
}

// SMTPSettings configures the email relay. Variables are prefixed with SMTP_.
type SMTPSettings struct {
	Enabled           bool          `envconfig:"ENABLED" default:"false"`
	Host              string        `envconfig:"HOST"`
	Port              int           `envconfig:"PORT" default:"587"`
	Username          string        `envconfig:"USERNAME"`
	Password          string        `envconfig:"PASSWORD"`
	From              string        `envconfig:"FROM"`
	Timeout           time.Duration `envconfig:"TIMEOUT" default:"15s"`
	RequestsPerSecond float64       `envconfig:"RPS" default:"5"`
	Burst             int           `envconfig:"BURST" default:"2"`
}

// ChannelsConfig groups the provider settings.
type ChannelsConfig struct {
	Chat ChatSettings
	SMTP SMTPSettings
}

// LoadChannels reads CHAT_* and SMTP_* variables. Unlike the worker
// settings there is no fallback: an enabled provider with missing
// credentials is a startup error.
func LoadChannels() (*ChannelsConfig, error) {
	var cfg ChannelsConfig
	if err := envconfig.Process("chat", &cfg.Chat); err != nil {
		return nil, fmt.Errorf("load chat config: %w", err)
	}
	if err := envconfig.Process("smtp", &cfg.SMTP); err != nil {
		return nil, fmt.Errorf("load smtp config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings of enabled providers only.
func (c *ChannelsConfig) Validate() error {
	var errs []error
	if c.Chat.Enabled {
		if err := pkgconfig.ValidateHTTPURL(c.Chat.APIURL); err != nil {
			errs = append(errs, fmt.Errorf("CHAT_API_URL: %w", err))
		}
		if c.Chat.PhoneNumberID == "" {
			errs = append(errs, errors.New("CHAT_PHONE_NUMBER_ID is required when chat is enabled"))
		}
		if c.Chat.AccessToken == "" {
			errs = append(errs, errors.New("CHAT_ACCESS_TOKEN is required when chat is enabled"))
		}
	}
	if c.SMTP.Enabled {
		if c.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when email is enabled"))
		}
		if err := pkgconfig.ValidateIntRange(c.SMTP.Port, 1, 65535); err != nil {
			errs = append(errs, fmt.Errorf("SMTP_PORT: %w", err))
		}
		if c.SMTP.From == "" {
			errs = append(errs, errors.New("SMTP_FROM is required when email is enabled"))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid channel config: %w", errors.Join(errs...))
	}
	return nil
}

// ClientConfig converts the settings into the chat client's config.
func (s ChatSettings) ClientConfig() notifier.ChatConfig {
	return notifier.ChatConfig{
		APIURL:            s.APIURL,
		PhoneNumberID:     s.PhoneNumberID,
		AccessToken:       s.AccessToken,
		LanguageCode:      s.LanguageCode,
		Timeout:           s.Timeout,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
	}
}

// MailerConfig converts the settings into the SMTP mailer's config.
func (s SMTPSettings) MailerConfig() notifier.SMTPConfig {
	return notifier.SMTPConfig{
		Host:              s.Host,
		Port:              s.Port,
		Username:          s.Username,
		Password:          s.Password,
		From:              s.From,
		Timeout:           s.Timeout,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
	}
}
