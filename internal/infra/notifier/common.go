package notifier

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"
)

// RateLimitError represents a 429 response from a provider.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// Temporary reports true: the next tick may succeed.
func (e *RateLimitError) Temporary() bool { return true }

// ClientError represents a rejected request (4xx, or a permanent SMTP reply).
// Retrying the same request will not help.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

func (e *ClientError) Temporary() bool { return false }

// ServerError represents a provider-side failure (5xx, or a transient SMTP reply).
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

func (e *ServerError) Temporary() bool { return true }

// classifyStatus maps a non-2xx HTTP response to a typed error.
func classifyStatus(provider string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    provider + " rate limit exceeded",
			RetryAfter: retryAfter(resp),
		}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API client error: %s", provider, truncate(string(body), 512, "...")),
		}
	case resp.StatusCode >= 500:
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s API server error: %s", provider, truncate(string(body), 512, "...")),
		}
	}
	return fmt.Errorf("unexpected status code %d", resp.StatusCode)
}

// retryAfter reads the Retry-After header in seconds; defaults to 5s.
func retryAfter(resp *http.Response) time.Duration {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 5 * time.Second
}

// truncate shortens text to at most maxLength bytes without splitting a rune,
// appending suffix when it cuts.
func truncate(text string, maxLength int, suffix string) string {
	if len(text) <= maxLength {
		return text
	}
	cut := maxLength - len(suffix)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + suffix
}
