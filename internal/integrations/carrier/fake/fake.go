package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
)

// Client is a stand-in carrier for local runs. The history it reports is a
// pure function of (carrier, tracking number) so re-polls dedup cleanly;
// about a fifth of the numbers come back delivered.
type Client struct {
	code string
	now  func() time.Time
}

func New(carrierCode string) *Client {
	return &Client{code: carrierCode, now: time.Now}
}

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func (f *Client) Fetch(_ context.Context, trackingNumber string) (carrier.Tracking, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(f.code))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	base := epoch.Add(time.Duration(v%(24*365)) * time.Hour)
	steps := []models.TrackingEvent{
		{Timestamp: base, Status: "Picked up", CarrierStatus: "PU", EventType: models.EventTypePickup},
		{Timestamp: base.Add(20 * time.Hour), Status: "In transit", CarrierStatus: "IT", EventType: models.EventTypeInTransit},
	}
	if v%5 == 0 {
		steps = append(steps,
			models.TrackingEvent{Timestamp: base.Add(40 * time.Hour), Status: "Out for delivery", CarrierStatus: "OD", EventType: models.EventTypeOutForDelivery},
			models.TrackingEvent{Timestamp: base.Add(46 * time.Hour), Status: "Delivered", CarrierStatus: "DL", EventType: models.EventTypeDelivered},
		)
	}

	now := f.now()
	events := []models.TrackingEvent{}
	for _, ev := range steps {
		if ev.Timestamp.After(now) {
			break
		}
		ev.Description = "fake carrier update"
		ev.Location = models.Location{City: "Testville", Country: "US"}
		events = append(events, ev)
	}

	eta := base.Add(48 * time.Hour)
	return carrier.Tracking{
		Carrier:           f.code,
		TrackingNumber:    trackingNumber,
		Status:            carrier.SummaryStatus(events),
		EstimatedDelivery: &eta,
		Events:            events,
	}, nil
}
