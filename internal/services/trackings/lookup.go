package trackings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type OrderSummary struct {
	ID                string             `json:"id"`
	Status            models.OrderStatus `json:"status"`
	Carrier           string             `json:"carrier"`
	ServiceType       string             `json:"service_type"`
	TrackingNumber    string             `json:"tracking_number"`
	TrackingURL       string             `json:"tracking_url"`
	EstimatedDelivery *time.Time         `json:"estimated_delivery,omitempty"`
	ShippedAt         *time.Time         `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time         `json:"delivered_at,omitempty"`
}

type LiveTracking struct {
	Status            string                 `json:"status"`
	EstimatedDelivery *time.Time             `json:"estimated_delivery,omitempty"`
	Events            []models.TrackingEvent `json:"events"`
	FetchedAt         time.Time              `json:"fetched_at"`
}

type TrackingView struct {
	Order       OrderSummary           `json:"order"`
	Events      []models.TrackingEvent `json:"events"`
	LatestEvent *models.TrackingEvent  `json:"latest_event,omitempty"`
	Live        *LiveTracking          `json:"live,omitempty"`
}

// TrackByNumber is the public view of a shipment. Live carrier data is best
// effort: any carrier or cache failure just leaves Live empty.
func (s *Service) TrackByNumber(ctx context.Context, trackingNumber string) (*TrackingView, error) {
	o, err := s.repo.GetOrderByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, errors.Wrap(err, "resolve order")
	}

	events := append([]models.TrackingEvent{}, o.TrackingEvents...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	view := &TrackingView{
		Order: OrderSummary{
			ID:          o.ID,
			Status:      o.Status,
			ShippedAt:   o.ShippedAt,
			DeliveredAt: o.DeliveredAt,
		},
		Events:      events,
		LatestEvent: LatestTrackingEvent(o.TrackingEvents),
	}
	if o.Shipping != nil {
		view.Order.Carrier = o.Shipping.Carrier
		view.Order.ServiceType = o.Shipping.ServiceType
		view.Order.TrackingNumber = o.Shipping.TrackingNumber
		view.Order.TrackingURL = o.Shipping.TrackingURL
		view.Order.EstimatedDelivery = o.Shipping.EstimatedDelivery
		view.Live = s.liveTracking(ctx, o.Shipping.Carrier, o.Shipping.TrackingNumber)
	}
	return view, nil
}

func (s *Service) liveTracking(ctx context.Context, carrierCode, trackingNumber string) *LiveTracking {
	useCache := s.cache != nil && s.liveTTL > 0
	key := liveKey(carrierCode, trackingNumber)

	if useCache {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var lt LiveTracking
			if json.Unmarshal(b, &lt) == nil {
				return &lt
			}
		}
	}

	tr, err := s.carriers.Fetch(ctx, carrierCode, trackingNumber)
	if err != nil {
		logger.Get().Info("live tracking unavailable",
			zap.String("carrier", carrierCode),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return nil
	}
	if tr.Status == carrier.StatusNotAvailable {
		return nil
	}

	lt := &LiveTracking{
		Status:            tr.Status,
		EstimatedDelivery: tr.EstimatedDelivery,
		Events:            tr.Events,
		FetchedAt:         s.now().UTC(),
	}
	if useCache {
		b, _ := json.Marshal(lt)
		_ = s.cache.Set(ctx, key, b, s.liveTTL)
	}
	return lt
}

func liveKey(carrierCode, trackingNumber string) string {
	return fmt.Sprintf("tracking:live:%s:%s", carrier.NormalizeCode(carrierCode), trackingNumber)
}
