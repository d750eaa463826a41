package redisbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "inapp:"

// Bus relays in-app events through Redis Pub/Sub so every API instance can
// serve any user's stream.
type Bus struct {
	c *redis.Client
}

var _ pubsub.Bus = (*Bus)(nil)

func New(addr string) *Bus {
	return &Bus{c: redis.NewClient(&redis.Options{Addr: addr})}
}

func (b *Bus) Publish(ctx context.Context, userID string, ev pubsub.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	if err := b.c.Publish(ctx, channelPrefix+userID, raw).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, userID string) (<-chan pubsub.Event, func(), error) {
	ps := b.c.Subscribe(ctx, channelPrefix+userID)
	// Wait for the subscription to be confirmed so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, errors.Wrap(err, "redis subscribe")
	}

	out := make(chan pubsub.Event, 16)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev pubsub.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Get().Warn("bad in-app event payload", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			select {
			case out <- ev:
			case <-done:
				return
			default:
				logger.Get().Warn("in-app subscriber is full, dropping event", zap.String("user_id", userID))
			}
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}
	return out, unsubscribe, nil
}

func (b *Bus) Close() error {
	return b.c.Close()
}
