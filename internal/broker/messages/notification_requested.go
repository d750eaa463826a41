package messages

import (
	"time"
)

// NotificationRequested is published by tracking ingestion when a buyer-facing
// event lands and consumed by whichever process owns notification delivery.
type NotificationRequested struct {
	RequestID   string         `json:"request_id"`
	UserID      string         `json:"user_id"`
	Type        string         `json:"type"`
	OrderID     string         `json:"order_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
}

// Key keeps one user's requests on one partition.
func (m NotificationRequested) Key() []byte {
	return []byte(m.UserID)
}
