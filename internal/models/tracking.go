package models

import "time"

// EventType is the canonical classification of a carrier scan.
type EventType string

const (
	EventTypePickup            EventType = "pickup"
	EventTypeInTransit         EventType = "in_transit"
	EventTypeOutForDelivery    EventType = "out_for_delivery"
	EventTypeDelivered         EventType = "delivered"
	EventTypeAttemptedDelivery EventType = "attempted_delivery"
	EventTypeException         EventType = "exception"
	EventTypeReturned          EventType = "returned"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypePickup, EventTypeInTransit, EventTypeOutForDelivery, EventTypeDelivered,
		EventTypeAttemptedDelivery, EventTypeException, EventTypeReturned:
		return true
	}
	return false
}

type Location struct {
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
	Facility string `json:"facility,omitempty"`
}

// TrackingEvent is immutable once stored. Timestamp is its identity for dedup.
type TrackingEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`
	Location      Location  `json:"location"`
	CarrierStatus string    `json:"carrier_status"`
	EventType     EventType `json:"event_type"`
}
