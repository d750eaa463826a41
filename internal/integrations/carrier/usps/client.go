package usps

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/MarketShip/internal/httpclient"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
)

const Code = "usps"

// EventTypes maps trackingEvents eventCode values to canonical event types.
var EventTypes = map[string]models.EventType{
	"03": models.EventTypePickup,
	"10": models.EventTypeInTransit,
	"OF": models.EventTypeOutForDelivery,
	"01": models.EventTypeDelivered,
	"02": models.EventTypeAttemptedDelivery,
	"53": models.EventTypeAttemptedDelivery,
	"09": models.EventTypeReturned,
	"21": models.EventTypeReturned,
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://apis.usps.com"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   httpclient.New(timeout),
	}
}

type respEvent struct {
	EventType      string `json:"eventType"`
	EventTimestamp string `json:"eventTimestamp"`
	EventCode      string `json:"eventCode"`
	EventCity      string `json:"eventCity"`
	EventState     string `json:"eventState"`
	EventCountry   string `json:"eventCountry"`
	EventFacility  string `json:"eventFacility"`
}

type respBody struct {
	TrackingNumber       string      `json:"trackingNumber"`
	StatusCategory       string      `json:"statusCategory"`
	ExpectedDeliveryDate string      `json:"expectedDeliveryDate"`
	TrackingEvents       []respEvent `json:"trackingEvents"`
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) (carrier.Tracking, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "parse base url"))
	}
	u.Path = "/tracking/v3/tracking/" + url.PathEscape(trackingNumber)
	q := u.Query()
	q.Set("expand", "DETAIL")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "new request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var rb respBody
	if err := carrier.DoJSON(c.httpc, req, Code, &rb); err != nil {
		return carrier.Tracking{}, err
	}

	res := carrier.Tracking{
		Carrier:        Code,
		TrackingNumber: trackingNumber,
		Events:         []models.TrackingEvent{},
	}
	if t, err := time.Parse("2006-01-02", rb.ExpectedDeliveryDate); err == nil {
		res.EstimatedDelivery = &t
	}

	for _, e := range rb.TrackingEvents {
		ts, err := time.Parse(time.RFC3339, e.EventTimestamp)
		if err != nil {
			continue
		}
		res.Events = append(res.Events, models.TrackingEvent{
			Timestamp:   ts.UTC(),
			Status:      e.EventType,
			Description: e.EventType,
			Location: models.Location{
				City:     e.EventCity,
				State:    e.EventState,
				Country:  e.EventCountry,
				Facility: e.EventFacility,
			},
			CarrierStatus: e.EventCode,
			EventType:     carrier.MapEventType(EventTypes, e.EventCode),
		})
	}
	res.Status = carrier.SummaryStatus(res.Events)
	return res, nil
}
