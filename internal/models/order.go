package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusReadyToShip    OrderStatus = "ready_to_ship"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusInTransit      OrderStatus = "in_transit"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReturned       OrderStatus = "returned"
	OrderStatusRefunded       OrderStatus = "refunded"
	OrderStatusDisputed       OrderStatus = "disputed"
)

// ActiveShipmentStatuses are the statuses bulk reconciliation re-polls.
var ActiveShipmentStatuses = []OrderStatus{
	OrderStatusShipped,
	OrderStatusInTransit,
	OrderStatusOutForDelivery,
}

// Order is the commerce-owned order as seen by tracking. TrackingEvents is
// append-only.
type Order struct {
	ID             string          `json:"id"`
	BuyerID        string          `json:"buyer_id"`
	SellerID       string          `json:"seller_id"`
	Status         OrderStatus     `json:"status"`
	TrackingEvents []TrackingEvent `json:"tracking_events"`
	Shipping       *ShippingInfo   `json:"shipping_info,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TrackingNumber returns "" when no label has been issued yet.
func (o *Order) TrackingNumber() string {
	if o.Shipping == nil {
		return ""
	}
	return o.Shipping.TrackingNumber
}

type ShippingInfo struct {
	Carrier           string          `json:"carrier"`
	ServiceType       string          `json:"service_type"`
	TrackingNumber    string          `json:"tracking_number"`
	TrackingURL       string          `json:"tracking_url"`
	ShippedDate       *time.Time      `json:"shipped_date,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time      `json:"actual_delivery,omitempty"`
	Weight            decimal.Decimal `json:"weight"`
	Dimensions        Dimensions      `json:"dimensions"`
	InsuranceValue    decimal.Decimal `json:"insurance_value"`
}

type Dimensions struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
	Unit   string          `json:"unit,omitempty"`
}
