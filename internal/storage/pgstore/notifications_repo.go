package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const notificationColumns = `
  id::text, user_id, title, message, type, category, priority, status, is_read, read_at,
  in_app_enabled, in_app_delivered, in_app_delivered_at, in_app_address,
  email_enabled, email_delivered, email_delivered_at, email_address,
  sms_enabled, sms_delivered, sms_delivered_at, sms_address,
  push_enabled, push_delivered, push_delivered_at, push_address,
  actions, data, scheduled_for, expires_at, attempts, next_attempt_at,
  created_at, updated_at`

const notExpired = `(expires_at IS NULL OR expires_at > now())`

// column prefixes of the per-channel fields
var channelColumns = map[models.Channel]string{
	models.ChannelInApp: "in_app",
	models.ChannelEmail: "email",
	models.ChannelSMS:   "sms",
	models.ChannelPush:  "push",
}

func scanNotification(row scanner) (*models.Notification, error) {
	var n models.Notification
	var priority, status string
	var actions, data []byte
	c := &n.Channels

	if err := row.Scan(
		&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Category, &priority, &status, &n.IsRead, &n.ReadAt,
		&c.InApp.Enabled, &c.InApp.Delivered, &c.InApp.DeliveredAt, &c.InApp.Address,
		&c.Email.Enabled, &c.Email.Delivered, &c.Email.DeliveredAt, &c.Email.Address,
		&c.SMS.Enabled, &c.SMS.Delivered, &c.SMS.DeliveredAt, &c.SMS.Address,
		&c.Push.Enabled, &c.Push.Delivered, &c.Push.DeliveredAt, &c.Push.Address,
		&actions, &data, &n.ScheduledFor, &n.ExpiresAt, &n.Attempts, &n.NextAttemptAt,
		&n.CreatedAt, &n.UpdatedAt,
	); err != nil {
		return nil, err
	}
	n.Priority = models.Priority(priority)
	n.Status = models.NotificationStatus(status)

	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &n.Actions); err != nil {
			return nil, errors.Wrap(err, "decode actions")
		}
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, errors.Wrap(err, "decode data")
		}
	}
	return &n, nil
}

func scanNotifications(rows pgx.Rows) ([]*models.Notification, error) {
	defer rows.Close()
	out := []*models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CreateNotification(ctx context.Context, n *models.Notification) error {
	actions, err := json.Marshal(nonNilActions(n.Actions))
	if err != nil {
		return errors.Wrap(err, "encode actions")
	}
	data, err := json.Marshal(nonNilData(n.Data))
	if err != nil {
		return errors.Wrap(err, "encode data")
	}
	c := n.Channels

	tag, err := s.db.Exec(ctx, `
INSERT INTO notifications (
  id, user_id, title, message, type, category, priority, status, is_read, read_at,
  in_app_enabled, in_app_delivered, in_app_delivered_at, in_app_address,
  email_enabled, email_delivered, email_delivered_at, email_address,
  sms_enabled, sms_delivered, sms_delivered_at, sms_address,
  push_enabled, push_delivered, push_delivered_at, push_address,
  actions, data, scheduled_for, expires_at, attempts, next_attempt_at,
  created_at, updated_at
)
VALUES (
  $1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,
  $11,$12,$13,$14,
  $15,$16,$17,$18,
  $19,$20,$21,$22,
  $23,$24,$25,$26,
  $27,$28,$29,$30,$31,$32,
  $33,$34
)
ON CONFLICT (id) DO NOTHING
`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Category, string(n.Priority), string(n.Status), n.IsRead, n.ReadAt,
		c.InApp.Enabled, c.InApp.Delivered, c.InApp.DeliveredAt, c.InApp.Address,
		c.Email.Enabled, c.Email.Delivered, c.Email.DeliveredAt, c.Email.Address,
		c.SMS.Enabled, c.SMS.Delivered, c.SMS.DeliveredAt, c.SMS.Address,
		c.Push.Enabled, c.Push.Delivered, c.Push.DeliveredAt, c.Push.Address,
		actions, data, n.ScheduledFor, n.ExpiresAt, n.Attempts, n.NextAttemptAt.UTC(),
		n.CreatedAt.UTC(), n.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert notification")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyExists
	}
	return nil
}

func nonNilActions(a []models.Action) []models.Action {
	if a == nil {
		return []models.Action{}
	}
	return a
}

func nonNilData(d map[string]any) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	return d
}

func (s *Storage) GetNotification(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `
SELECT `+notificationColumns+`
FROM notifications
WHERE id = $1::uuid AND `+notExpired, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select notification")
	}
	return n, nil
}

// MarkChannelDelivered sets only the fields of one channel, so concurrent
// deliveries of sibling channels never overwrite each other.
func (s *Storage) MarkChannelDelivered(ctx context.Context, id string, ch models.Channel, at time.Time) error {
	col, ok := channelColumns[ch]
	if !ok {
		return errors.Errorf("unknown channel %q", ch)
	}
	q := fmt.Sprintf(`
UPDATE notifications
SET %[1]s_delivered = true,
    %[1]s_delivered_at = COALESCE(%[1]s_delivered_at, $2),
    updated_at = now()
WHERE id = $1::uuid
`, col)
	tag, err := s.db.Exec(ctx, q, id, at.UTC())
	if err != nil {
		return errors.Wrap(err, "mark channel delivered")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FinalizeDelivery moves a pending notification to delivered when every
// enabled channel is delivered and returns the resulting status.
func (s *Storage) FinalizeDelivery(ctx context.Context, id string) (models.NotificationStatus, error) {
	var status string
	err := s.db.QueryRow(ctx, `
WITH upd AS (
  UPDATE notifications
  SET status = 'delivered', updated_at = now()
  WHERE id = $1::uuid
    AND status = 'pending'
    AND (NOT in_app_enabled OR in_app_delivered)
    AND (NOT email_enabled OR email_delivered)
    AND (NOT sms_enabled OR sms_delivered)
    AND (NOT push_enabled OR push_delivered)
  RETURNING status
)
SELECT status FROM upd
UNION ALL
SELECT status FROM notifications WHERE id = $1::uuid AND NOT EXISTS (SELECT 1 FROM upd)
`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "finalize delivery")
	}
	return models.NotificationStatus(status), nil
}

// RecordFailedAttempt counts a failed dispatch of a pending notification and
// schedules the next one. At maxAttempts the notification becomes failed.
func (s *Storage) RecordFailedAttempt(ctx context.Context, id string, nextAttemptAt time.Time, maxAttempts int) (int, models.NotificationStatus, error) {
	var attempts int
	var status string
	err := s.db.QueryRow(ctx, `
UPDATE notifications
SET attempts = attempts + 1,
    next_attempt_at = $2,
    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE status END,
    updated_at = now()
WHERE id = $1::uuid AND status = 'pending'
RETURNING attempts, status
`, id, nextAttemptAt.UTC(), maxAttempts).Scan(&attempts, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, "", storage.ErrNotFound
	}
	if err != nil {
		return 0, "", errors.Wrap(err, "record failed attempt")
	}
	return attempts, models.NotificationStatus(status), nil
}

// ClaimDueNotifications picks pending notifications whose next attempt is
// due and leases them by pushing next_attempt_at forward, so concurrent
// workers skip them.
func (s *Storage) ClaimDueNotifications(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Notification, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+notificationColumns+`
FROM notifications
WHERE status = 'pending'
  AND next_attempt_at <= $1
  AND (scheduled_for IS NULL OR scheduled_for <= $1)
  AND (expires_at IS NULL OR expires_at > $1)
ORDER BY next_attempt_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due notifications")
	}
	picked, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(picked) == 0 {
		return picked, nil
	}

	ids := make([]string, 0, len(picked))
	for _, n := range picked {
		ids = append(ids, n.ID)
	}
	leaseUntil := now.UTC().Add(lease)
	if _, err := tx.Exec(ctx, `
UPDATE notifications SET next_attempt_at = $2, updated_at = now()
WHERE id = ANY($1::uuid[])
`, ids, leaseUntil); err != nil {
		return nil, errors.Wrap(err, "lease notifications")
	}
	for _, n := range picked {
		n.NextAttemptAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ListNotifications returns one page of a user's live notifications, newest
// first, with the total number matching the filter.
func (s *Storage) ListNotifications(ctx context.Context, userID string, f models.NotificationFilter) ([]*models.Notification, int, error) {
	where := []string{"user_id = $1", notExpired}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Category != "" {
		add("category = $%d", f.Category)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Priority != "" {
		add("priority = $%d", f.Priority)
	}
	if f.IsRead != nil {
		add("is_read = $%d", *f.IsRead)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count notifications")
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	rows, err := s.db.Query(ctx, fmt.Sprintf(`
SELECT `+notificationColumns+`
FROM notifications
WHERE %s
ORDER BY created_at DESC
LIMIT $%d OFFSET $%d
`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select notifications")
	}
	items, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Storage) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT count(*) FROM notifications
WHERE user_id = $1 AND NOT is_read AND `+notExpired, userID).Scan(&n)
	return n, errors.Wrap(err, "count unread")
}

// MarkRead flags one notification as read. A delivered notification also
// moves to status read.
func (s *Storage) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	n, err := scanNotification(s.db.QueryRow(ctx, `
UPDATE notifications
SET is_read = true,
    read_at = COALESCE(read_at, now()),
    status = CASE WHEN status = 'delivered' THEN 'read' ELSE status END,
    updated_at = now()
WHERE id = $1::uuid AND user_id = $2 AND `+notExpired+`
RETURNING `+notificationColumns, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "mark read")
	}
	return n, nil
}

func (s *Storage) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE notifications
SET is_read = true,
    read_at = COALESCE(read_at, now()),
    status = CASE WHEN status = 'delivered' THEN 'read' ELSE status END,
    updated_at = now()
WHERE user_id = $1 AND NOT is_read AND `+notExpired, userID)
	if err != nil {
		return 0, errors.Wrap(err, "mark all read")
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) DeleteNotification(ctx context.Context, userID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1::uuid AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete notification")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PurgeExpired deletes notifications whose expires_at has passed.
func (s *Storage) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "purge expired notifications")
	}
	return tag.RowsAffected(), nil
}
