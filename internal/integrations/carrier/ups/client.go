package ups

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

const Code = "ups"

// EventTypes maps activity status.type codes to canonical event types.
var EventTypes = map[string]models.EventType{
	"P":  models.EventTypePickup,
	"I":  models.EventTypeInTransit,
	"O":  models.EventTypeOutForDelivery,
	"D":  models.EventTypeDelivered,
	"X":  models.EventTypeException,
	"RS": models.EventTypeReturned,
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://onlinetools.ups.com"
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

type address struct {
	City          string `json:"city"`
	StateProvince string `json:"stateProvince"`
	Country       string `json:"country"`
}

type activity struct {
	Location struct {
		Address address `json:"address"`
		Slic    string  `json:"slic"`
	} `json:"location"`
	Status struct {
		Type        string `json:"type"`
		Description string `json:"description"`
		Code        string `json:"code"`
	} `json:"status"`
	Date string `json:"date"`
	Time string `json:"time"`
}

type respBody struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				TrackingNumber string `json:"trackingNumber"`
				DeliveryDate   []struct {
					Type string `json:"type"`
					Date string `json:"date"`
				} `json:"deliveryDate"`
				Activity []activity `json:"activity"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) (carrier.Tracking, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "parse base url"))
	}
	u.Path = "/api/track/v1/details/" + url.PathEscape(trackingNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "new request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("transSrc", "marketship")

	var rb respBody
	if err := carrier.DoJSON(c.httpc, req, Code, &rb); err != nil {
		return carrier.Tracking{}, err
	}

	res := carrier.Tracking{
		Carrier:        Code,
		TrackingNumber: trackingNumber,
		Events:         []models.TrackingEvent{},
	}
	if len(rb.TrackResponse.Shipment) == 0 || len(rb.TrackResponse.Shipment[0].Package) == 0 {
		res.Status = carrier.SummaryStatus(nil)
		return res, nil
	}
	pkg := rb.TrackResponse.Shipment[0].Package[0]

	for _, d := range pkg.DeliveryDate {
		if t, err := time.Parse("20060102", d.Date); err == nil {
			res.EstimatedDelivery = &t
			break
		}
	}

	// UPS order is kept as returned.
	for _, a := range pkg.Activity {
		ts, err := time.Parse("20060102150405", a.Date+a.Time)
		if err != nil {
			continue
		}
		res.Events = append(res.Events, models.TrackingEvent{
			Timestamp:   ts.UTC(),
			Status:      a.Status.Description,
			Description: a.Status.Description,
			Location: models.Location{
				City:     a.Location.Address.City,
				State:    a.Location.Address.StateProvince,
				Country:  a.Location.Address.Country,
				Facility: a.Location.Slic,
			},
			CarrierStatus: a.Status.Type,
			EventType:     carrier.MapEventType(EventTypes, a.Status.Type),
		})
	}
	res.Status = carrier.SummaryStatus(res.Events)
	return res, nil
}
