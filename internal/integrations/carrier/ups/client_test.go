package ups

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

func TestClient_Fetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/track/v1/details/1Z999", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trackResponse":{"shipment":[{"package":[{
  "trackingNumber":"1Z999",
  "deliveryDate":[{"type":"SDD","date":"20250105"}],
  "activity":[
    {"location":{"address":{"city":"Atlanta","stateProvince":"GA","country":"US"}},"status":{"type":"D","description":"Delivered"},"date":"20250104","time":"143000"},
    {"location":{"address":{"city":"Atlanta","stateProvince":"GA","country":"US"}},"status":{"type":"ZZ","description":"Arrived at facility"},"date":"20250103","time":"080000"},
    {"location":{"address":{"city":"Macon","stateProvince":"GA","country":"US"}},"status":{"type":"P","description":"Picked up"},"date":"20250102","time":"100000"}
  ]}]}]}}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, "k", time.Second).Fetch(context.Background(), "1Z999")
	require.NoError(t, err)
	require.Equal(t, Code, res.Carrier)
	require.Equal(t, string(models.EventTypeDelivered), res.Status)
	require.NotNil(t, res.EstimatedDelivery)
	require.Len(t, res.Events, 3)

	require.Equal(t, models.EventTypeDelivered, res.Events[0].EventType)
	require.Equal(t, time.Date(2025, 1, 4, 14, 30, 0, 0, time.UTC), res.Events[0].Timestamp)
	require.Equal(t, "Atlanta", res.Events[0].Location.City)
	require.Equal(t, models.EventTypeInTransit, res.Events[1].EventType, "unmapped code")
	require.Equal(t, "ZZ", res.Events[1].CarrierStatus)
	require.Equal(t, models.EventTypePickup, res.Events[2].EventType)
}

func TestClient_Fetch_HTTPErrors(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, carrier.ErrAuthFailure},
		{http.StatusForbidden, carrier.ErrAuthFailure},
		{http.StatusTooManyRequests, carrier.ErrRateLimited},
		{http.StatusInternalServerError, carrier.ErrTransport},
		{http.StatusNotFound, carrier.ErrTransport},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		_, err := New(srv.URL, "k", time.Second).Fetch(context.Background(), "1Z1")
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)
		srv.Close()
	}
}

func TestClient_Fetch_TimeoutIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k", 20*time.Millisecond).Fetch(context.Background(), "1Z1")
	require.ErrorIs(t, err, carrier.ErrTransport)
	require.NotErrorIs(t, err, carrier.ErrRateLimited)
}
