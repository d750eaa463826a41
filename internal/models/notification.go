package models

import (
	"fmt"
	"strings"
	"time"
)

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusDelivered NotificationStatus = "delivered"
	NotificationStatusRead      NotificationStatus = "read"
	NotificationStatusArchived  NotificationStatus = "archived"
	NotificationStatusFailed    NotificationStatus = "failed"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelPush  Channel = "push"
)

// AllChannels is the fixed channel order used for iteration and storage.
var AllChannels = []Channel{ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type ChannelState struct {
	Enabled     bool       `json:"enabled"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Address     string     `json:"address,omitempty"`
}

type Channels struct {
	InApp ChannelState `json:"in_app"`
	Email ChannelState `json:"email"`
	SMS   ChannelState `json:"sms"`
	Push  ChannelState `json:"push"`
}

// Get returns a pointer into c, or nil for an unknown channel.
func (c *Channels) Get(ch Channel) *ChannelState {
	switch ch {
	case ChannelInApp:
		return &c.InApp
	case ChannelEmail:
		return &c.Email
	case ChannelSMS:
		return &c.SMS
	case ChannelPush:
		return &c.Push
	}
	return nil
}

// AllEnabledDelivered is true when every enabled channel is delivered,
// including the case of no enabled channel at all.
func (c *Channels) AllEnabledDelivered() bool {
	for _, ch := range AllChannels {
		st := c.Get(ch)
		if st.Enabled && !st.Delivered {
			return false
		}
	}
	return true
}

type Action struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
	Style string `json:"style,omitempty" yaml:"style,omitempty"`
}

type Notification struct {
	ID            string             `json:"id"`
	UserID        string             `json:"user_id"`
	Title         string             `json:"title"`
	Message       string             `json:"message"`
	Type          string             `json:"type"`
	Category      string             `json:"category"`
	Priority      Priority           `json:"priority"`
	Status        NotificationStatus `json:"status"`
	IsRead        bool               `json:"is_read"`
	ReadAt        *time.Time         `json:"read_at,omitempty"`
	Channels      Channels           `json:"channels"`
	Actions       []Action           `json:"actions,omitempty"`
	Data          map[string]any     `json:"data,omitempty"`
	ScheduledFor  *time.Time         `json:"scheduled_for,omitempty"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Attempts      int                `json:"attempts"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NotificationFilter narrows a user's notification list. Empty fields match
// everything.
type NotificationFilter struct {
	Category string
	Type     string
	Priority string
	IsRead   *bool
	Limit    int
	Offset   int
}

// FormattedTitle is Title with {{key}} placeholders substituted from Data.
func (n *Notification) FormattedTitle() string {
	return FormatPlaceholders(n.Title, n.Data)
}

// FormattedMessage is Message with {{key}} placeholders substituted from Data.
func (n *Notification) FormattedMessage() string {
	return FormatPlaceholders(n.Message, n.Data)
}

// FormatPlaceholders replaces every {{key}} for keys present in data in one
// left-to-right pass; substituted values are never scanned again. Tokens
// without a matching key are left as they are.
func FormatPlaceholders(tmpl string, data map[string]any) string {
	if len(data) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	var b strings.Builder
	b.Grow(len(tmpl))
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end < 0 {
			break
		}
		end += start + 2
		b.WriteString(rest[:start])
		if v, ok := data[rest[start+2:end]]; ok {
			b.WriteString(fmt.Sprint(v))
		} else {
			b.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}
	b.WriteString(rest)
	return b.String()
}
