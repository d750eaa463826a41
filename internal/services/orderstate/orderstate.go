// Package orderstate maps carrier event types onto order statuses.
//
// Carrier data arrives out of order, so the table alone is not enough: an
// order that reached delivered or returned never moves back to a
// non-terminal status, and orders held by commerce (cancelled, refunded,
// disputed) keep their status while still recording events.
package orderstate

import (
	"github.com/BearBump/MarketShip/internal/models"
)

var transitions = map[models.EventType]models.OrderStatus{
	models.EventTypePickup:         models.OrderStatusShipped,
	models.EventTypeInTransit:      models.OrderStatusInTransit,
	models.EventTypeOutForDelivery: models.OrderStatusOutForDelivery,
	models.EventTypeDelivered:      models.OrderStatusDelivered,
	models.EventTypeReturned:       models.OrderStatusReturned,
}

// allowed exits from terminal statuses
var fromTerminal = map[models.OrderStatus]map[models.OrderStatus]bool{
	models.OrderStatusDelivered: {models.OrderStatusReturned: true},
	models.OrderStatusReturned:  {},
}

var held = map[models.OrderStatus]bool{
	models.OrderStatusCancelled: true,
	models.OrderStatusRefunded:  true,
	models.OrderStatusDisputed:  true,
}

var labelable = map[models.OrderStatus]bool{
	models.OrderStatusPending:    true,
	models.OrderStatusConfirmed:  true,
	models.OrderStatusProcessing: true,
}

// Target returns the status an event type drives to. ok is false for
// attempted_delivery and exception, which never change status.
func Target(t models.EventType) (models.OrderStatus, bool) {
	s, ok := transitions[t]
	return s, ok
}

func IsTerminal(s models.OrderStatus) bool {
	_, ok := fromTerminal[s]
	return ok
}

func IsHeld(s models.OrderStatus) bool {
	return held[s]
}

// CanCreateLabel reports whether a shipping label may be issued in status s.
func CanCreateLabel(s models.OrderStatus) bool {
	return labelable[s]
}

type Outcome struct {
	From models.OrderStatus
	To   models.OrderStatus
	// Blocked is set when the event type maps to a status but the current
	// status does not allow it.
	Blocked bool
	// Held is set for any event landing on an order held by the commerce
	// domain, whether or not the event type maps to a status.
	Held bool
}

func (o Outcome) Changed() bool { return o.From != o.To }

// Apply updates order status and lifecycle timestamps for one new event.
func Apply(o *models.Order, ev models.TrackingEvent) Outcome {
	out := Outcome{From: o.Status, To: o.Status}

	target, ok := Target(ev.EventType)
	if IsHeld(o.Status) {
		out.Held = true
		out.Blocked = ok
		return out
	}
	if !ok {
		return out
	}
	if !allowed(o.Status, target) {
		out.Blocked = true
		return out
	}

	o.Status = target
	out.To = target

	switch target {
	case models.OrderStatusShipped:
		if o.ShippedAt == nil {
			ts := ev.Timestamp
			o.ShippedAt = &ts
		}
		if o.Shipping != nil && o.Shipping.ShippedDate == nil {
			ts := ev.Timestamp
			o.Shipping.ShippedDate = &ts
		}
	case models.OrderStatusDelivered:
		if o.DeliveredAt == nil {
			ts := ev.Timestamp
			o.DeliveredAt = &ts
		}
		if o.Shipping != nil && o.Shipping.ActualDelivery == nil {
			ts := ev.Timestamp
			o.Shipping.ActualDelivery = &ts
		}
	}
	return out
}

func allowed(from, to models.OrderStatus) bool {
	if held[from] {
		return false
	}
	if exits, ok := fromTerminal[from]; ok {
		return from == to || exits[to]
	}
	return true
}
