package httprelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/stretchr/testify/require"
)

func TestSender_PostsRenderedNotification(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.Equal(t, "n-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(srv.URL, "k", models.ChannelSMS, time.Second)
	err := s.Send(context.Background(), &models.Notification{
		ID:      "n-1",
		UserID:  "u-1",
		Title:   "Order {{orderNumber}}",
		Message: "Out for delivery",
		Data:    map[string]any{"orderNumber": "A-1"},
	}, "+15550100")
	require.NoError(t, err)
	require.Equal(t, "Order A-1", got.Title)
	require.Equal(t, models.ChannelSMS, got.Channel)
	require.Equal(t, "+15550100", got.Address)
}

func TestSender_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "", models.ChannelEmail, time.Second).Send(context.Background(), &models.Notification{ID: "n"}, "")
	require.ErrorContains(t, err, "status 502")
}

func TestSender_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := New(srv.URL, "", models.ChannelPush, time.Second).Send(ctx, &models.Notification{ID: "n"}, "")
	require.Error(t, err)
}
