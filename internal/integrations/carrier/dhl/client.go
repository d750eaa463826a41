package dhl

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/BearBump/MarketShip/internal/httpclient"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
)

const Code = "dhl"

// EventTypes maps DHL status codes to canonical event types.
var EventTypes = map[string]models.EventType{
	"pre-transit": models.EventTypePickup,
	"transit":     models.EventTypeInTransit,
	"delivered":   models.EventTypeDelivered,
	"failure":     models.EventTypeException,
	"returned":    models.EventTypeReturned,
}

// DHL sends local timestamps with or without an offset.
var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05"}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api-eu.dhl.com"
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
	Timestamp string `json:"timestamp"`
	Location  struct {
		Address struct {
			AddressLocality string `json:"addressLocality"`
			CountryCode     string `json:"countryCode"`
		} `json:"address"`
	} `json:"location"`
	StatusCode  string `json:"statusCode"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type respBody struct {
	Shipments []struct {
		ID                      string      `json:"id"`
		EstimatedTimeOfDelivery string      `json:"estimatedTimeOfDelivery"`
		Events                  []respEvent `json:"events"`
	} `json:"shipments"`
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) (carrier.Tracking, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "parse base url"))
	}
	u.Path = "/track/shipments"
	q := u.Query()
	q.Set("trackingNumber", trackingNumber)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "new request"))
	}
	req.Header.Set("DHL-API-Key", c.apiKey)

	var rb respBody
	if err := carrier.DoJSON(c.httpc, req, Code, &rb); err != nil {
		return carrier.Tracking{}, err
	}

	res := carrier.Tracking{
		Carrier:        Code,
		TrackingNumber: trackingNumber,
		Events:         []models.TrackingEvent{},
	}
	if len(rb.Shipments) == 0 {
		res.Status = carrier.SummaryStatus(nil)
		return res, nil
	}
	sh := rb.Shipments[0]

	if t, ok := parseTime(sh.EstimatedTimeOfDelivery); ok {
		res.EstimatedDelivery = &t
	}

	for _, e := range sh.Events {
		ts, ok := parseTime(e.Timestamp)
		if !ok {
			continue
		}
		res.Events = append(res.Events, models.TrackingEvent{
			Timestamp:   ts,
			Status:      e.Status,
			Description: e.Description,
			Location: models.Location{
				City:    e.Location.Address.AddressLocality,
				Country: e.Location.Address.CountryCode,
			},
			CarrierStatus: e.StatusCode,
			EventType:     carrier.MapEventType(EventTypes, e.StatusCode),
		})
	}
	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Timestamp.After(res.Events[j].Timestamp)
	})
	res.Status = carrier.SummaryStatus(res.Events)
	return res, nil
}
