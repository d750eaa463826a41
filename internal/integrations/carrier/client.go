package carrier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
)

// StatusNotAvailable is reported for carriers nobody registered.
const StatusNotAvailable = "tracking_not_available"

// Tracking is a carrier response normalized to canonical events.
type Tracking struct {
	Carrier           string
	TrackingNumber    string
	Status            string
	EstimatedDelivery *time.Time
	Events            []models.TrackingEvent
}

type Client interface {
	Fetch(ctx context.Context, trackingNumber string) (Tracking, error)
}

// ClientFunc adapts a plain function to Client.
type ClientFunc func(ctx context.Context, trackingNumber string) (Tracking, error)

func (f ClientFunc) Fetch(ctx context.Context, trackingNumber string) (Tracking, error) {
	return f(ctx, trackingNumber)
}

// MapEventType looks code up in table; unknown codes are in_transit.
func MapEventType(table map[string]models.EventType, code string) models.EventType {
	if t, ok := table[code]; ok {
		return t
	}
	return models.EventTypeInTransit
}

// SummaryStatus is the event type of the newest event, or "unknown".
func SummaryStatus(events []models.TrackingEvent) string {
	if len(events) == 0 {
		return "unknown"
	}
	latest := events[0]
	for _, ev := range events[1:] {
		if ev.Timestamp.After(latest.Timestamp) {
			latest = ev
		}
	}
	return string(latest.EventType)
}

// DoJSON sends req and decodes a 2xx JSON body into out. Every failure is
// returned as *Error classified by HTTP status.
func DoJSON(httpc *http.Client, req *http.Request, carrierCode string, out any) error {
	resp, err := httpc.Do(req)
	if err != nil {
		return NewError(carrierCode, KindTransport, errors.Wrap(err, "do request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return FromHTTPStatus(carrierCode, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(carrierCode, KindTransport, errors.Wrap(err, "decode"))
	}
	return nil
}
