package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ChatConfig configures the chat-messaging Cloud API client.
type ChatConfig struct {
	// APIURL is the versioned Graph API base, e.g. https://graph.facebook.com/v19.0
	APIURL        string
	PhoneNumberID string
	AccessToken   string

	// LanguageCode is used for template messages.
	LanguageCode string

	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ChatTemplate is a pre-approved provider template with positional body parameters.
type ChatTemplate struct {
	Name       string
	Parameters []string
}

// ChatClient sends messages through a chat business Cloud API.
type ChatClient struct {
	config      ChatConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewChatClient creates a client; the HTTP timeout bounds a single call.
func NewChatClient(config ChatConfig) *ChatClient {
	if config.LanguageCode == "" {
		config.LanguageCode = "en"
	}
	return &ChatClient{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		rateLimiter: NewRateLimiter(config.RequestsPerSecond, config.Burst),
	}
}

type chatMessage struct {
	MessagingProduct string         `json:"messaging_product"`
	RecipientType    string         `json:"recipient_type"`
	To               string         `json:"to"`
	Type             string         `json:"type"`
	Text             *chatText      `json:"text,omitempty"`
	Template         *chatTemplBody `json:"template,omitempty"`
}

type chatText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type chatTemplBody struct {
	Name       string          `json:"name"`
	Language   chatLanguage    `json:"language"`
	Components []chatComponent `json:"components,omitempty"`
}

type chatLanguage struct {
	Code string `json:"code"`
}

type chatComponent struct {
	Type       string          `json:"type"`
	Parameters []chatParameter `json:"parameters"`
}

type chatParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// maxChatTextLength is the provider's limit for a text message body.
const maxChatTextLength = 4096

// SendText sends a free-form text message and returns the provider message id.
func (c *ChatClient) SendText(ctx context.Context, to, text string) (string, error) {
	return c.send(ctx, chatMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalizeAddress(to),
		Type:             "text",
		Text:             &chatText{Body: truncate(text, maxChatTextLength, "...")},
	})
}

// SendTemplate sends a template message. Providers only deliver free-form
// text inside an open conversation window; templates reach the user anytime.
func (c *ChatClient) SendTemplate(ctx context.Context, to string, tmpl ChatTemplate) (string, error) {
	body := &chatTemplBody{
		Name:     tmpl.Name,
		Language: chatLanguage{Code: c.config.LanguageCode},
	}
	if len(tmpl.Parameters) > 0 {
		params := make([]chatParameter, len(tmpl.Parameters))
		for i, p := range tmpl.Parameters {
			params[i] = chatParameter{Type: "text", Text: p}
		}
		body.Components = []chatComponent{{Type: "body", Parameters: params}}
	}
	return c.send(ctx, chatMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               normalizeAddress(to),
		Type:             "template",
		Template:         body,
	})
}

func (c *ChatClient) send(ctx context.Context, msg chatMessage) (string, error) {
	if msg.To == "" {
		return "", &ClientError{StatusCode: http.StatusBadRequest, Message: "chat recipient address is empty"}
	}
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	url := strings.TrimRight(c.config.APIURL, "/") + "/" + c.config.PhoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus("chat", resp, body)
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", errors.New("chat response carried no message id")
	}

	slog.Debug("chat message accepted",
		slog.String("message_id", out.Messages[0].ID),
		slog.String("type", msg.Type))
	return out.Messages[0].ID, nil
}

// normalizeAddress strips formatting from a phone-number address; the API
// expects digits only, with the country code.
func normalizeAddress(addr string) string {
	var b strings.Builder
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
