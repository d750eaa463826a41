package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/BearBump/MarketShip/internal/httpclient"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/pkg/errors"
)

const Code = "fedex"

// EventTypes maps scanEvents eventType codes to canonical event types.
var EventTypes = map[string]models.EventType{
	"PU": models.EventTypePickup,
	"IT": models.EventTypeInTransit,
	"AR": models.EventTypeInTransit,
	"DP": models.EventTypeInTransit,
	"OD": models.EventTypeOutForDelivery,
	"DL": models.EventTypeDelivered,
	"DE": models.EventTypeException,
	"SE": models.EventTypeException,
	"RS": models.EventTypeReturned,
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://apis.fedex.com"
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

type trackingInfo struct {
	TrackingNumberInfo struct {
		TrackingNumber string `json:"trackingNumber"`
	} `json:"trackingNumberInfo"`
}

type reqBody struct {
	IncludeDetailedScans bool           `json:"includeDetailedScans"`
	TrackingInfo         []trackingInfo `json:"trackingInfo"`
}

type scanEvent struct {
	Date             string `json:"date"`
	EventType        string `json:"eventType"`
	EventDescription string `json:"eventDescription"`
	ScanLocation     struct {
		City                string `json:"city"`
		StateOrProvinceCode string `json:"stateOrProvinceCode"`
		CountryCode         string `json:"countryCode"`
	} `json:"scanLocation"`
	LocationType string `json:"locationType"`
}

type respBody struct {
	Output struct {
		CompleteTrackResults []struct {
			TrackingNumber string `json:"trackingNumber"`
			TrackResults   []struct {
				EstimatedDeliveryTimeWindow struct {
					Window struct {
						Ends string `json:"ends"`
					} `json:"window"`
				} `json:"estimatedDeliveryTimeWindow"`
				ScanEvents []scanEvent `json:"scanEvents"`
			} `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

func (c *Client) Fetch(ctx context.Context, trackingNumber string) (carrier.Tracking, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "parse base url"))
	}
	u.Path = "/track/v1/trackingnumbers"

	var info trackingInfo
	info.TrackingNumberInfo.TrackingNumber = trackingNumber
	body := reqBody{IncludeDetailedScans: true, TrackingInfo: []trackingInfo{info}}
	raw, err := json.Marshal(body)
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "marshal"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(raw))
	if err != nil {
		return carrier.Tracking{}, carrier.NewError(Code, carrier.KindTransport, errors.Wrap(err, "new request"))
	}
	req.Header.Set("Content-Type", "application/json")
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
	if len(rb.Output.CompleteTrackResults) == 0 || len(rb.Output.CompleteTrackResults[0].TrackResults) == 0 {
		res.Status = carrier.SummaryStatus(nil)
		return res, nil
	}
	tr := rb.Output.CompleteTrackResults[0].TrackResults[0]

	if t, err := time.Parse(time.RFC3339, tr.EstimatedDeliveryTimeWindow.Window.Ends); err == nil {
		t = t.UTC()
		res.EstimatedDelivery = &t
	}

	for _, s := range tr.ScanEvents {
		ts, err := time.Parse(time.RFC3339, s.Date)
		if err != nil {
			continue
		}
		res.Events = append(res.Events, models.TrackingEvent{
			Timestamp:   ts.UTC(),
			Status:      s.EventDescription,
			Description: s.EventDescription,
			Location: models.Location{
				City:     s.ScanLocation.City,
				State:    s.ScanLocation.StateOrProvinceCode,
				Country:  s.ScanLocation.CountryCode,
				Facility: s.LocationType,
			},
			CarrierStatus: s.EventType,
			EventType:     carrier.MapEventType(EventTypes, s.EventType),
		})
	}
	sort.SliceStable(res.Events, func(i, j int) bool {
		return res.Events[i].Timestamp.After(res.Events[j].Timestamp)
	})
	res.Status = carrier.SummaryStatus(res.Events)
	return res, nil
}
