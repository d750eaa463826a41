// Package pubsub fans in-app notifications out to live subscribers keyed by
// user id. Nothing is persisted: a user without an open subscription simply
// misses the event.
package pubsub

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"go.uber.org/zap"
)

const EventNotification = "notification"

type Event struct {
	Type         string               `json:"type"`
	UserID       string               `json:"user_id"`
	Notification *models.Notification `json:"notification,omitempty"`
	At           time.Time            `json:"at"`
}

// Bus is implemented by MemoryBus and redisbus.Bus.
type Bus interface {
	Publish(ctx context.Context, userID string, ev Event) error
	// Subscribe returns a stream for userID. The returned func unsubscribes
	// and closes the stream; calling it more than once is safe.
	Subscribe(ctx context.Context, userID string) (<-chan Event, func(), error)
}

const defaultBuffer = 16

// MemoryBus is a single-process Bus. Slow subscribers lose events instead
// of blocking publishers.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Event
	nextID uint64
	buffer int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[string]map[uint64]chan Event),
		buffer: defaultBuffer,
	}
}

func (b *MemoryBus) Publish(_ context.Context, userID string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[userID] {
		select {
		case ch <- ev:
		default:
			logger.Get().Warn("in-app subscriber is full, dropping event", zap.String("user_id", userID))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, userID string) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]chan Event)
	}
	b.subs[userID][id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[userID], id)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			close(ch)
		})
	}
	return ch, unsubscribe, nil
}

// Subscribers reports how many live subscriptions userID has.
func (b *MemoryBus) Subscribers(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
