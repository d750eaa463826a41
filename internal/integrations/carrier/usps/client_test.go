package usps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch_KeepsCarrierOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tracking/v3/tracking/9400111", r.URL.Path)
		require.Equal(t, "DETAIL", r.URL.Query().Get("expand"))
		_, _ = w.Write([]byte(`{"trackingNumber":"9400111","expectedDeliveryDate":"2025-01-08","trackingEvents":[
  {"eventType":"Accepted at USPS Origin Facility","eventTimestamp":"2025-01-02T10:00:00Z","eventCode":"03","eventCity":"DENVER","eventState":"CO"},
  {"eventType":"Notice Left","eventTimestamp":"2025-01-05T10:00:00Z","eventCode":"53"},
  {"eventType":"Departed","eventTimestamp":"2025-01-03T10:00:00Z","eventCode":"T1"},
  {"eventType":"Returned to Sender","eventTimestamp":"2025-01-06T10:00:00Z","eventCode":"09"}
]}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "k", time.Second).Fetch(context.Background(), "9400111")
	require.NoError(t, err)
	require.Len(t, res.Events, 4)
	require.Equal(t, models.EventTypePickup, res.Events[0].EventType)
	require.Equal(t, "DENVER", res.Events[0].Location.City)
	require.Equal(t, models.EventTypeAttemptedDelivery, res.Events[1].EventType)
	require.Equal(t, models.EventTypeInTransit, res.Events[2].EventType)
	require.Equal(t, models.EventTypeReturned, res.Events[3].EventType)
	require.Equal(t, string(models.EventTypeReturned), res.Status)
	require.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), *res.EstimatedDelivery)
}

func TestClient_Fetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", time.Second).Fetch(context.Background(), "9400111")
	require.ErrorIs(t, err, carrier.ErrTransport)
}
