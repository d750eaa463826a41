package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const orderColumns = `
  o.id, o.buyer_id, o.seller_id, o.status,
  o.shipped_at, o.delivered_at, o.created_at, o.updated_at,
  s.carrier, s.service_type, s.tracking_number, s.tracking_url,
  s.shipped_date, s.estimated_delivery, s.actual_delivery,
  s.weight::text, s.length::text, s.width::text, s.height::text,
  s.dimension_unit, s.insurance_value::text`

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	var status string
	var carrierCode, serviceType, trackingNumber, trackingURL, unit *string
	var shippedDate, eta, actual *time.Time
	var weight, length, width, height, insurance *string

	if err := row.Scan(
		&o.ID, &o.BuyerID, &o.SellerID, &status,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
		&carrierCode, &serviceType, &trackingNumber, &trackingURL,
		&shippedDate, &eta, &actual,
		&weight, &length, &width, &height,
		&unit, &insurance,
	); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)

	if carrierCode != nil {
		o.Shipping = &models.ShippingInfo{
			Carrier:           *carrierCode,
			ServiceType:       deref(serviceType),
			TrackingNumber:    deref(trackingNumber),
			TrackingURL:       deref(trackingURL),
			ShippedDate:       shippedDate,
			EstimatedDelivery: eta,
			ActualDelivery:    actual,
			Weight:            parseDecimal(weight),
			Dimensions: models.Dimensions{
				Length: parseDecimal(length),
				Width:  parseDecimal(width),
				Height: parseDecimal(height),
				Unit:   deref(unit),
			},
			InsuranceValue: parseDecimal(insurance),
		}
	}
	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func parseDecimal(s *string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CreateOrder inserts an order owned by the commerce domain. Used to seed
// orders into the tracking store.
func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO orders (id, buyer_id, seller_id, status, shipped_at, delivered_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, o.ID, o.BuyerID, o.SellerID, string(o.Status), o.ShippedAt, o.DeliveredAt, o.CreatedAt, o.UpdatedAt)
	return errors.Wrap(err, "insert order")
}

// GetOrder loads the order with its shipping info and events in insertion order.
func (s *Storage) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders o
LEFT JOIN shipping_info s ON s.order_id = o.id
WHERE o.id = $1
`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}

	evs, err := s.listEvents(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o.TrackingEvents = evs
	return o, nil
}

func (s *Storage) GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error) {
	var orderID string
	err := s.db.QueryRow(ctx, `SELECT order_id FROM shipping_info WHERE tracking_number = $1`, trackingNumber).Scan(&orderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order by tracking number")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Storage) listEvents(ctx context.Context, orderID string) ([]models.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT event_time, status, description, city, state, country, facility, carrier_status, event_type
FROM tracking_events
WHERE order_id = $1
ORDER BY id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	out := []models.TrackingEvent{}
	for rows.Next() {
		var e models.TrackingEvent
		var eventType string
		if err := rows.Scan(
			&e.Timestamp, &e.Status, &e.Description,
			&e.Location.City, &e.Location.State, &e.Location.Country, &e.Location.Facility,
			&e.CarrierStatus, &eventType,
		); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Timestamp = e.Timestamp.UTC()
		e.EventType = models.EventType(eventType)
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// AppendTrackingEvent stores ev unless the order already has an event with
// the same timestamp. When it is stored, apply runs against the row-locked
// order and the resulting status and timestamps are saved in the same
// transaction. Concurrent calls for one order serialize on the row lock.
func (s *Storage) AppendTrackingEvent(ctx context.Context, orderID string, ev models.TrackingEvent, apply func(o *models.Order)) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders o
LEFT JOIN shipping_info s ON s.order_id = o.id
WHERE o.id = $1
FOR UPDATE OF o
`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, errors.Wrap(err, "lock order")
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO tracking_events (
  order_id, event_time, status, description, city, state, country, facility,
  carrier_status, event_type, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
ON CONFLICT (order_id, event_time) DO NOTHING
`, orderID, ev.Timestamp.UTC(), ev.Status, ev.Description,
		ev.Location.City, ev.Location.State, ev.Location.Country, ev.Location.Facility,
		ev.CarrierStatus, string(ev.EventType))
	if err != nil {
		return false, errors.Wrap(err, "insert tracking event")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if apply != nil {
		apply(o)
	}

	if _, err := tx.Exec(ctx, `
UPDATE orders
SET status = $2, shipped_at = $3, delivered_at = $4, updated_at = now()
WHERE id = $1
`, orderID, string(o.Status), o.ShippedAt, o.DeliveredAt); err != nil {
		return false, errors.Wrap(err, "update order")
	}
	if o.Shipping != nil {
		if _, err := tx.Exec(ctx, `
UPDATE shipping_info
SET shipped_date = $2, actual_delivery = $3
WHERE order_id = $1
`, orderID, o.Shipping.ShippedDate, o.Shipping.ActualDelivery); err != nil {
			return false, errors.Wrap(err, "update shipping info")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit tx")
	}
	return true, nil
}

// ListActiveShipments returns orders in statuses with a tracking number.
func (s *Storage) ListActiveShipments(ctx context.Context, statuses []models.OrderStatus) ([]*models.Order, error) {
	raw := make([]string, 0, len(statuses))
	for _, st := range statuses {
		raw = append(raw, string(st))
	}

	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders o
JOIN shipping_info s ON s.order_id = o.id
WHERE o.status = ANY($1)
  AND s.tracking_number <> ''
ORDER BY o.updated_at ASC
`, raw)
	if err != nil {
		return nil, errors.Wrap(err, "select active shipments")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SaveShippingInfo upserts the label of an order and moves it to status.
func (s *Storage) SaveShippingInfo(ctx context.Context, orderID string, info models.ShippingInfo, status models.OrderStatus) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, string(status))
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	_, err = tx.Exec(ctx, `
INSERT INTO shipping_info (
  order_id, carrier, service_type, tracking_number, tracking_url,
  shipped_date, estimated_delivery, actual_delivery,
  weight, length, width, height, dimension_unit, insurance_value
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,$13,$14::numeric)
ON CONFLICT (order_id) DO UPDATE SET
  carrier = EXCLUDED.carrier,
  service_type = EXCLUDED.service_type,
  tracking_number = EXCLUDED.tracking_number,
  tracking_url = EXCLUDED.tracking_url,
  estimated_delivery = EXCLUDED.estimated_delivery,
  weight = EXCLUDED.weight,
  length = EXCLUDED.length,
  width = EXCLUDED.width,
  height = EXCLUDED.height,
  dimension_unit = EXCLUDED.dimension_unit,
  insurance_value = EXCLUDED.insurance_value
`, orderID, info.Carrier, info.ServiceType, info.TrackingNumber, info.TrackingURL,
		info.ShippedDate, info.EstimatedDelivery, info.ActualDelivery,
		info.Weight.String(), info.Dimensions.Length.String(), info.Dimensions.Width.String(),
		info.Dimensions.Height.String(), info.Dimensions.Unit, info.InsuranceValue.String())
	if err != nil {
		return errors.Wrap(err, "upsert shipping info")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}
