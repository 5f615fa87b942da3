package entity

import (
	"fmt"
	"strings"
	"time"
)

// NotificationStatus is the lifecycle state of a notification record.
//
// Transitions:
//
//	PENDING -> SENT       (dispatcher, first channel that accepts)
//	PENDING -> FAILED     (administrative action)
//	PENDING -> CANCELLED  (administrative action)
//	FAILED  -> PENDING    (explicit retry)
//
// SENT and CANCELLED are terminal.
type NotificationStatus string

const (
	StatusPending   NotificationStatus = "PENDING"
	StatusSent      NotificationStatus = "SENT"
	StatusFailed    NotificationStatus = "FAILED"
	StatusCancelled NotificationStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s NotificationStatus) IsTerminal() bool {
	return s == StatusSent || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s NotificationStatus) CanTransitionTo(next NotificationStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusSent || next == StatusFailed || next == StatusCancelled
	case StatusFailed:
		return next == StatusPending
	default:
		return false
	}
}

// ChannelKind names a delivery mechanism. The set is closed: only the
// constants below are valid, and ParseChannelKind rejects anything else.
type ChannelKind string

const (
	ChannelChat  ChannelKind = "CHAT"
	ChannelEmail ChannelKind = "EMAIL"
	ChannelInApp ChannelKind = "IN_APP"
)

// ChannelKinds lists every known channel kind.
var ChannelKinds = []ChannelKind{ChannelChat, ChannelEmail, ChannelInApp}

// Valid reports whether k is one of the known channel kinds.
func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelChat, ChannelEmail, ChannelInApp:
		return true
	}
	return false
}

// Label returns the lowercase name used for metrics and logs.
func (k ChannelKind) Label() string {
	return strings.ToLower(string(k))
}

// ParseChannelKind converts a configured channel name into a ChannelKind.
// Matching is case-insensitive and accepts "in-app" and "inapp" for IN_APP.
func ParseChannelKind(name string) (ChannelKind, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	if normalized == "INAPP" {
		normalized = string(ChannelInApp)
	}
	kind := ChannelKind(normalized)
	if !kind.Valid() {
		return "", &ValidationError{Field: "channel", Message: fmt.Sprintf("unknown channel %q", name)}
	}
	return kind, nil
}

// DefaultReminderChannels is the channel order used for reminders.
var DefaultReminderChannels = []ChannelKind{ChannelChat, ChannelEmail}

// MetaType tags the structured content of a notification.
type MetaType string

const (
	MetaVaccinationReminder MetaType = "vaccination_reminder"
	MetaFoodDepletion       MetaType = "food_depletion"
	MetaOrderUpdate         MetaType = "order_update"
)

// Meta field keys.
const (
	MetaKeyPetName       = "pet_name"
	MetaKeyVaccineName   = "vaccine_name"
	MetaKeyDueDate       = "due_date"
	MetaKeyMilestone     = "milestone"
	MetaKeyProductName   = "product_name"
	MetaKeyDepletionDate = "depletion_date"
	MetaKeyDaysLeft      = "days_left"
	MetaKeyDailyGrams    = "daily_grams"
	MetaKeyOrderNumber   = "order_number"
	MetaKeyOrderStatus   = "order_status"
)

// Meta is the structured bag attached to a notification. Channels use Type to
// pick a template; an empty or unknown type means title/body are sent verbatim.
type Meta struct {
	Type   MetaType          `json:"type,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Get returns the value stored under key, or "" when absent.
func (m Meta) Get(key string) string {
	if m.Fields == nil {
		return ""
	}
	return m.Fields[key]
}

// Notification is a durable unit of outbound communication.
type Notification struct {
	ID       string
	UserID   string
	Title    string
	Body     string
	Meta     Meta
	Channels []ChannelKind
	Status   NotificationStatus

	CreatedAt    time.Time
	ScheduledFor *time.Time
	SentAt       *time.Time

	// DeliveredVia is the channel that accepted the notification (empty until SENT).
	DeliveredVia ChannelKind
	// Attempts counts dispatch passes where every channel declined.
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
}

const maxTitleLength = 200

// Validate checks the fields required before a record may be created.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return &ValidationError{Field: "user_id", Message: "recipient is required"}
	}
	if strings.TrimSpace(n.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if len(n.Title) > maxTitleLength {
		return &ValidationError{Field: "title", Message: fmt.Sprintf("title must not exceed %d characters", maxTitleLength)}
	}
	if len(n.Channels) == 0 {
		return &ValidationError{Field: "channels", Message: "at least one channel is required"}
	}
	seen := make(map[ChannelKind]struct{}, len(n.Channels))
	for _, ch := range n.Channels {
		if !ch.Valid() {
			return &ValidationError{Field: "channels", Message: fmt.Sprintf("unknown channel %q", ch)}
		}
		if _, dup := seen[ch]; dup {
			return &ValidationError{Field: "channels", Message: fmt.Sprintf("channel %q listed twice", ch)}
		}
		seen[ch] = struct{}{}
	}
	return nil
}

// IsDue reports whether the notification may be dispatched at now.
func (n *Notification) IsDue(now time.Time) bool {
	return n.ScheduledFor == nil || !n.ScheduledFor.After(now)
}

// Age returns how long the notification has been waiting since it became due.
// It returns zero for records that are not pending or not yet due.
func (n *Notification) Age(now time.Time) time.Duration {
	if n.Status != StatusPending || !n.IsDue(now) {
		return 0
	}
	since := n.CreatedAt
	if n.ScheduledFor != nil && n.ScheduledFor.After(since) {
		since = *n.ScheduledFor
	}
	return now.Sub(since)
}
