package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  status TEXT NOT NULL,
  shipped_at TIMESTAMPTZ NULL,
  delivered_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`
CREATE TABLE IF NOT EXISTS shipping_info (
  order_id TEXT PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
  carrier TEXT NOT NULL,
  service_type TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL,
  tracking_url TEXT NOT NULL DEFAULT '',
  shipped_date TIMESTAMPTZ NULL,
  estimated_delivery TIMESTAMPTZ NULL,
  actual_delivery TIMESTAMPTZ NULL,
  weight NUMERIC(12,3) NOT NULL DEFAULT 0,
  length NUMERIC(12,2) NOT NULL DEFAULT 0,
  width NUMERIC(12,2) NOT NULL DEFAULT 0,
  height NUMERIC(12,2) NOT NULL DEFAULT 0,
  dimension_unit TEXT NOT NULL DEFAULT '',
  insurance_value NUMERIC(14,2) NOT NULL DEFAULT 0
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipping_info_tracking_number ON shipping_info(tracking_number)`,
		`
CREATE TABLE IF NOT EXISTS tracking_events (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  event_time TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  country TEXT NOT NULL DEFAULT '',
  facility TEXT NOT NULL DEFAULT '',
  carrier_status TEXT NOT NULL DEFAULT '',
  event_type TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// An event is identified by its timestamp within an order.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_tracking_events_order_time ON tracking_events(order_id, event_time)`,
		`
CREATE TABLE IF NOT EXISTS notifications (
  id UUID PRIMARY KEY,
  user_id TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  priority TEXT NOT NULL DEFAULT 'medium',
  status TEXT NOT NULL,
  is_read BOOLEAN NOT NULL DEFAULT false,
  read_at TIMESTAMPTZ NULL,
  in_app_enabled BOOLEAN NOT NULL DEFAULT false,
  in_app_delivered BOOLEAN NOT NULL DEFAULT false,
  in_app_delivered_at TIMESTAMPTZ NULL,
  in_app_address TEXT NOT NULL DEFAULT '',
  email_enabled BOOLEAN NOT NULL DEFAULT false,
  email_delivered BOOLEAN NOT NULL DEFAULT false,
  email_delivered_at TIMESTAMPTZ NULL,
  email_address TEXT NOT NULL DEFAULT '',
  sms_enabled BOOLEAN NOT NULL DEFAULT false,
  sms_delivered BOOLEAN NOT NULL DEFAULT false,
  sms_delivered_at TIMESTAMPTZ NULL,
  sms_address TEXT NOT NULL DEFAULT '',
  push_enabled BOOLEAN NOT NULL DEFAULT false,
  push_delivered BOOLEAN NOT NULL DEFAULT false,
  push_delivered_at TIMESTAMPTZ NULL,
  push_address TEXT NOT NULL DEFAULT '',
  actions JSONB NOT NULL DEFAULT '[]',
  data JSONB NOT NULL DEFAULT '{}',
  scheduled_for TIMESTAMPTZ NULL,
  expires_at TIMESTAMPTZ NULL,
  attempts INT NOT NULL DEFAULT 0,
  next_attempt_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(next_attempt_at) WHERE status = 'pending'`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_expires_at ON notifications(expires_at) WHERE expires_at IS NOT NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
