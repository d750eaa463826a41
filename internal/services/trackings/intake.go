package trackings

import (
	"context"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type WebhookInput struct {
	Carrier        string
	TrackingNumber string
	Event          models.TrackingEvent
}

// HandleWebhook resolves the order by tracking number and ingests the event.
// An event without event_type is normalized from its raw carrier status code.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) (IngestResult, error) {
	o, err := s.repo.GetOrderByTrackingNumber(ctx, in.TrackingNumber)
	if err != nil {
		return IngestResult{}, errors.Wrap(err, "resolve order")
	}
	if o.Shipping != nil && carrier.NormalizeCode(in.Carrier) != carrier.NormalizeCode(o.Shipping.Carrier) {
		logger.Get().Warn("webhook carrier does not match label",
			zap.String("order_id", o.ID),
			zap.String("webhook_carrier", in.Carrier),
			zap.String("label_carrier", o.Shipping.Carrier),
		)
	}
	ev := in.Event
	if ev.EventType == "" {
		ev.EventType = s.carriers.MapStatus(in.Carrier, ev.CarrierStatus)
	}
	return s.Ingest(ctx, o.ID, []models.TrackingEvent{ev})
}

// AddManualEvent ingests an event entered by the order's seller or an admin.
func (s *Service) AddManualEvent(ctx context.Context, actor models.Actor, orderID string, ev models.TrackingEvent) (IngestResult, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return IngestResult{}, errors.Wrap(err, "get order")
	}
	if !actor.IsAdmin() && actor.UserID != o.SellerID {
		return IngestResult{}, ErrForbidden
	}
	return s.Ingest(ctx, orderID, []models.TrackingEvent{ev})
}
