package logsender

import (
	"context"
	"testing"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/stretchr/testify/require"
)

func TestSender(t *testing.T) {
	s := New(models.ChannelEmail)
	n := &models.Notification{ID: "n-1", UserID: "u-1", Title: "Hi {{name}}", Data: map[string]any{"name": "Ann"}}
	require.NoError(t, s.Send(context.Background(), n, "a@example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Send(ctx, n, ""), context.Canceled)
}
