package trackings

import (
	"context"
	"time"

	"github.com/BearBump/MarketShip/internal/broker/messages"
	"github.com/BearBump/MarketShip/internal/cache"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/orderstate"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidState       = errors.New("order status does not allow this operation")
	ErrUnsupportedCarrier = errors.New("unsupported carrier")
	ErrInvalidEvent       = errors.New("invalid tracking event")
)

type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Order, error)
	AppendTrackingEvent(ctx context.Context, orderID string, ev models.TrackingEvent, apply func(o *models.Order)) (bool, error)
	ListActiveShipments(ctx context.Context, statuses []models.OrderStatus) ([]*models.Order, error)
	SaveShippingInfo(ctx context.Context, orderID string, info models.ShippingInfo, status models.OrderStatus) error
}

// Fetcher is implemented by carrier.Registry.
type Fetcher interface {
	Fetch(ctx context.Context, carrierCode, trackingNumber string) (carrier.Tracking, error)
	MapStatus(carrierCode, statusCode string) models.EventType
}

// NotificationRequester hands a buyer notification off to the notification
// service, in process or over Kafka.
type NotificationRequester interface {
	RequestNotification(ctx context.Context, req messages.NotificationRequested) error
}

// event types that notify the buyer
var notificationTypes = map[models.EventType]string{
	models.EventTypeDelivered:      "package_delivered",
	models.EventTypeOutForDelivery: "package_out_for_delivery",
	models.EventTypeException:      "package_delivery_exception",
}

type Service struct {
	repo      Repository
	carriers  Fetcher
	requester NotificationRequester
	cache     cache.BytesCache
	liveTTL   time.Duration

	reconcileDelay time.Duration
	now            func() time.Time
}

func New(repo Repository, carriers Fetcher, requester NotificationRequester, c cache.BytesCache, liveTTL time.Duration) *Service {
	return &Service{
		repo:           repo,
		carriers:       carriers,
		requester:      requester,
		cache:          c,
		liveTTL:        liveTTL,
		reconcileDelay: time.Second,
		now:            time.Now,
	}
}

// WithReconcileDelay sets the pause between orders in Reconcile. Zero disables it.
func (s *Service) WithReconcileDelay(d time.Duration) *Service {
	if d >= 0 {
		s.reconcileDelay = d
	}
	return s
}

type IngestResult struct {
	AnyNew   bool `json:"any_new"`
	Appended int  `json:"appended"`
}

// Ingest appends the events the order does not have yet, in the given
// order, and applies the status transition of each new one. Re-ingesting an
// event with a known timestamp is a no-op.
func (s *Service) Ingest(ctx context.Context, orderID string, events []models.TrackingEvent) (IngestResult, error) {
	var res IngestResult
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			return res, errors.Wrap(ErrInvalidEvent, "timestamp is required")
		}
		if ev.EventType == "" {
			ev.EventType = models.EventTypeInTransit
		}
		if !ev.EventType.Valid() {
			return res, errors.Wrapf(ErrInvalidEvent, "unknown event_type %q", ev.EventType)
		}
		ev.Timestamp = ev.Timestamp.UTC()

		var (
			outcome orderstate.Outcome
			order   models.Order
		)
		inserted, err := s.repo.AppendTrackingEvent(ctx, orderID, ev, func(o *models.Order) {
			outcome = orderstate.Apply(o, ev)
			order = *o
		})
		if err != nil {
			return res, errors.Wrap(err, "append tracking event")
		}
		if !inserted {
			continue
		}
		res.AnyNew = true
		res.Appended++

		if outcome.Changed() {
			logger.Get().Info("order status changed",
				zap.String("order_id", orderID),
				zap.String("from", string(outcome.From)),
				zap.String("to", string(outcome.To)),
			)
		}
		if outcome.Blocked || outcome.Held {
			logger.Get().Info("tracking event recorded without status change",
				zap.String("order_id", orderID),
				zap.String("status", string(outcome.From)),
				zap.String("event_type", string(ev.EventType)),
				zap.Bool("held", outcome.Held),
			)
			continue
		}
		// the buyer hears about delivery once, on first entry into delivered
		if ev.EventType == models.EventTypeDelivered && !outcome.Changed() {
			continue
		}
		if typ, ok := notificationTypes[ev.EventType]; ok {
			s.requestNotification(ctx, &order, ev, typ)
		}
	}
	return res, nil
}

func (s *Service) requestNotification(ctx context.Context, o *models.Order, ev models.TrackingEvent, typ string) {
	if s.requester == nil {
		return
	}
	data := map[string]any{
		"orderId":     o.ID,
		"orderNumber": o.ID,
		"status":      string(ev.EventType),
		"description": ev.Description,
		"location":    formatLocation(ev.Location),
		"timestamp":   ev.Timestamp.Format(time.RFC3339),
	}
	if o.Shipping != nil {
		data["carrier"] = o.Shipping.Carrier
		data["trackingNumber"] = o.Shipping.TrackingNumber
		data["trackingUrl"] = o.Shipping.TrackingURL
	}

	req := messages.NotificationRequested{
		RequestID:   requestID(o.ID, ev, typ),
		UserID:      o.BuyerID,
		Type:        typ,
		OrderID:     o.ID,
		Data:        data,
		RequestedAt: s.now().UTC(),
	}
	if err := s.requester.RequestNotification(ctx, req); err != nil {
		logger.Get().Error("request notification",
			zap.String("order_id", o.ID),
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}

// requestID is stable per (order, event timestamp, type) so re-ingesting or
// redelivering the same event yields the same request.
func requestID(orderID string, ev models.TrackingEvent, typ string) string {
	name := orderID + "|" + ev.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + typ
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func formatLocation(l models.Location) string {
	out := ""
	for _, part := range []string{l.Facility, l.City, l.State, l.Country} {
		if part == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += part
	}
	return out
}

// LatestTrackingEvent is the event with the greatest timestamp, regardless
// of append order. Nil for no events.
func LatestTrackingEvent(events []models.TrackingEvent) *models.TrackingEvent {
	if len(events) == 0 {
		return nil
	}
	latest := 0
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.After(events[latest].Timestamp) {
			latest = i
		}
	}
	ev := events[latest]
	return &ev
}

type ReconcileResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Reconcile re-polls every active shipment and ingests what the carrier
// reports. A failing order is counted and skipped.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult

	orders, err := s.repo.ListActiveShipments(ctx, models.ActiveShipmentStatuses)
	if err != nil {
		return res, errors.Wrap(err, "list active shipments")
	}

	for i, o := range orders {
		if o.TrackingNumber() == "" {
			continue
		}
		if i > 0 && s.reconcileDelay > 0 {
			t := time.NewTimer(s.reconcileDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return res, ctx.Err()
			case <-t.C:
			}
		}
		res.Total++

		tr, err := s.carriers.Fetch(ctx, o.Shipping.Carrier, o.Shipping.TrackingNumber)
		if err != nil {
			res.Errors++
			logger.Get().Warn("reconcile fetch", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		r, err := s.Ingest(ctx, o.ID, tr.Events)
		if err != nil {
			res.Errors++
			logger.Get().Warn("reconcile ingest", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if r.AnyNew {
			res.Updated++
		}
	}

	logger.Get().Info("reconcile finished",
		zap.Int("total", res.Total),
		zap.Int("updated", res.Updated),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}
