package orderstate

import (
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func ev(t models.EventType, at time.Time) models.TrackingEvent {
	return models.TrackingEvent{EventType: t, Timestamp: at}
}

func TestApply_Table(t *testing.T) {
	cases := []struct {
		name string
		from models.OrderStatus
		ev   models.EventType
		want models.OrderStatus
	}{
		{"pickup ships", models.OrderStatusReadyToShip, models.EventTypePickup, models.OrderStatusShipped},
		{"in transit", models.OrderStatusShipped, models.EventTypeInTransit, models.OrderStatusInTransit},
		{"out for delivery", models.OrderStatusInTransit, models.EventTypeOutForDelivery, models.OrderStatusOutForDelivery},
		{"delivered", models.OrderStatusOutForDelivery, models.EventTypeDelivered, models.OrderStatusDelivered},
		{"returned", models.OrderStatusInTransit, models.EventTypeReturned, models.OrderStatusReturned},
		{"attempted keeps status", models.OrderStatusOutForDelivery, models.EventTypeAttemptedDelivery, models.OrderStatusOutForDelivery},
		{"exception keeps status", models.OrderStatusInTransit, models.EventTypeException, models.OrderStatusInTransit},
		{"non-terminal may move back", models.OrderStatusOutForDelivery, models.EventTypeInTransit, models.OrderStatusInTransit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := &models.Order{Status: tc.from}
			out := Apply(o, ev(tc.ev, t0))
			require.Equal(t, tc.want, o.Status)
			require.Equal(t, tc.want, out.To)
			require.False(t, out.Blocked)
		})
	}
}

func TestApply_TerminalNeverMovesBack(t *testing.T) {
	o := &models.Order{Status: models.OrderStatusDelivered}
	out := Apply(o, ev(models.EventTypeInTransit, t0))
	require.True(t, out.Blocked)
	require.False(t, out.Changed())
	require.Equal(t, models.OrderStatusDelivered, o.Status)

	out = Apply(o, ev(models.EventTypeReturned, t0.Add(time.Hour)))
	require.False(t, out.Blocked)
	require.Equal(t, models.OrderStatusReturned, o.Status)

	out = Apply(o, ev(models.EventTypeDelivered, t0.Add(2*time.Hour)))
	require.True(t, out.Blocked)
	require.Equal(t, models.OrderStatusReturned, o.Status)
}

func TestApply_HeldOrders(t *testing.T) {
	for _, s := range []models.OrderStatus{models.OrderStatusCancelled, models.OrderStatusRefunded, models.OrderStatusDisputed} {
		o := &models.Order{Status: s}
		out := Apply(o, ev(models.EventTypeDelivered, t0))
		require.True(t, out.Blocked, s)
		require.True(t, out.Held, s)
		require.Equal(t, s, o.Status)
		require.Nil(t, o.DeliveredAt)

		for _, et := range []models.EventType{models.EventTypeException, models.EventTypeAttemptedDelivery} {
			out = Apply(o, ev(et, t0.Add(time.Hour)))
			require.True(t, out.Held, et)
			require.False(t, out.Blocked, et)
			require.Equal(t, s, o.Status)
		}
	}

	out := Apply(&models.Order{Status: models.OrderStatusInTransit}, ev(models.EventTypeException, t0))
	require.False(t, out.Held)
}

func TestApply_DeliveredTimestampsSetOnce(t *testing.T) {
	o := &models.Order{Status: models.OrderStatusOutForDelivery, Shipping: &models.ShippingInfo{}}

	Apply(o, ev(models.EventTypeDelivered, t0))
	require.Equal(t, t0, *o.DeliveredAt)
	require.Equal(t, t0, *o.Shipping.ActualDelivery)

	out := Apply(o, ev(models.EventTypeDelivered, t0.Add(time.Hour)))
	require.False(t, out.Changed())
	require.Equal(t, t0, *o.DeliveredAt)
	require.Equal(t, t0, *o.Shipping.ActualDelivery)
}

func TestApply_ShippedTimestamps(t *testing.T) {
	o := &models.Order{Status: models.OrderStatusReadyToShip, Shipping: &models.ShippingInfo{}}
	Apply(o, ev(models.EventTypePickup, t0))
	require.Equal(t, t0, *o.ShippedAt)
	require.Equal(t, t0, *o.Shipping.ShippedDate)
}

func TestCanCreateLabel(t *testing.T) {
	require.True(t, CanCreateLabel(models.OrderStatusPending))
	require.True(t, CanCreateLabel(models.OrderStatusProcessing))
	require.False(t, CanCreateLabel(models.OrderStatusShipped))
	require.False(t, CanCreateLabel(models.OrderStatusCancelled))
	require.True(t, IsTerminal(models.OrderStatusReturned))
	require.False(t, IsTerminal(models.OrderStatusInTransit))
}
