package carrier

import (
	"context"
	"strings"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Registry routes fetches to the adapter of a carrier and guards every call
// with the rate limiter.
type Registry struct {
	clients map[string]Client
	codes   map[string]map[string]models.EventType
	limiter Limiter
}

func NewRegistry(limiter Limiter) *Registry {
	if limiter == nil {
		limiter = NewCircuitLimiter()
	}
	return &Registry{
		clients: make(map[string]Client),
		codes:   make(map[string]map[string]models.EventType),
		limiter: limiter,
	}
}

func (r *Registry) Register(carrierCode string, c Client) {
	r.clients[NormalizeCode(carrierCode)] = c
}

// RegisterStatusCodes sets the status-code table used to normalize webhook
// events of a carrier. It is independent of the client so a fake client
// still gets real code mapping.
func (r *Registry) RegisterStatusCodes(carrierCode string, table map[string]models.EventType) {
	r.codes[NormalizeCode(carrierCode)] = table
}

// MapStatus maps a raw carrier status code to a canonical event type.
// Unknown carriers and unmapped codes are in_transit.
func (r *Registry) MapStatus(carrierCode, statusCode string) models.EventType {
	return MapEventType(r.codes[NormalizeCode(carrierCode)], strings.TrimSpace(statusCode))
}

// Codes lists registered carrier codes.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.clients))
	for code := range r.clients {
		out = append(out, code)
	}
	return out
}

// Client returns the adapter for carrierCode or an Unsupported error.
func (r *Registry) Client(carrierCode string) (Client, error) {
	code := NormalizeCode(carrierCode)
	c, ok := r.clients[code]
	if !ok {
		return nil, NewError(code, KindUnsupported, nil)
	}
	return c, nil
}

// Fetch returns tracking for trackingNumber. Unknown carriers degrade to a
// StatusNotAvailable result without error. A carrier inside its cooldown
// window fails fast with RateLimited and is not called.
func (r *Registry) Fetch(ctx context.Context, carrierCode, trackingNumber string) (Tracking, error) {
	code := NormalizeCode(carrierCode)
	c, err := r.Client(code)
	if err != nil {
		return NotAvailable(code, trackingNumber), nil
	}

	if !r.limiter.CanCall(ctx, code) {
		return Tracking{}, NewError(code, KindRateLimited, nil)
	}

	res, err := c.Fetch(ctx, trackingNumber)
	limited := IsKind(err, KindRateLimited)
	r.limiter.RecordCall(ctx, code, limited)
	if err != nil {
		logger.Get().Warn("carrier fetch failed",
			zap.String("carrier", code),
			zap.String("tracking_number", trackingNumber),
			zap.Error(err),
		)
		return Tracking{}, err
	}

	if res.Carrier == "" {
		res.Carrier = code
	}
	if res.TrackingNumber == "" {
		res.TrackingNumber = trackingNumber
	}
	return res, nil
}

func NotAvailable(carrierCode, trackingNumber string) Tracking {
	return Tracking{
		Carrier:        carrierCode,
		TrackingNumber: trackingNumber,
		Status:         StatusNotAvailable,
		Events:         []models.TrackingEvent{},
	}
}

func NormalizeCode(carrierCode string) string {
	return strings.ToLower(strings.TrimSpace(carrierCode))
}

// IsKind reports whether err carries a carrier *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}
