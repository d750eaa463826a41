package redisbus

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/pubsub"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestBus_CrossInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	subscriber := New(mr.Addr())
	publisher := New(mr.Addr())

	ch, unsub, err := subscriber.Subscribe(ctx, "u1")
	require.NoError(t, err)

	n := &models.Notification{ID: "n1", UserID: "u1", Title: "Hello"}
	require.NoError(t, publisher.Publish(ctx, "u1", pubsub.Event{Type: pubsub.EventNotification, UserID: "u1", Notification: n}))

	select {
	case ev := <-ch:
		require.Equal(t, pubsub.EventNotification, ev.Type)
		require.NotNil(t, ev.Notification)
		require.Equal(t, "n1", ev.Notification.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	unsub()
	unsub()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}
