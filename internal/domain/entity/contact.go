package entity

import (
	"strings"
	"time"
)

// Contact holds the delivery addresses resolved for a user.
type Contact struct {
	UserID      string
	ChatAddress string
	ChatOptIn   bool
	Email       string
}

// CanChat reports whether the user has a chat address and opted in to chat messages.
func (c *Contact) CanChat() bool {
	return c != nil && strings.TrimSpace(c.ChatAddress) != "" && c.ChatOptIn
}

// CanEmail reports whether the user has an email address.
func (c *Contact) CanEmail() bool {
	return c != nil && strings.TrimSpace(c.Email) != ""
}

// InboxItem is one entry of a user's in-app notification feed.
type InboxItem struct {
	ID        string
	UserID    string
	Title     string
	Body      string
	Type      MetaType
	Read      bool
	CreatedAt time.Time
}
