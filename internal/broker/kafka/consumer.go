package kafka

import (
	"context"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r messageReader

	retryMin time.Duration
	retryMax time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.FirstOffset,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, retryMin: 500 * time.Millisecond, retryMax: 30 * time.Second}
}

// WithRetryBackoff bounds the pause between handler retries of one message.
func (c *Consumer) WithRetryBackoff(min, max time.Duration) *Consumer {
	if min > 0 {
		c.retryMin = min
	}
	if max >= c.retryMin {
		c.retryMax = max
	}
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume runs handler for each message until ctx ends or fetching or
// committing fails. A failing handler is retried on the same message with
// exponential backoff; the reader's fetch position moves on regardless of
// commits, so returning would skip the message.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler func(key, value []byte) error) error {
	delay := c.retryMin
	for attempt := 1; ; attempt++ {
		err := handler(msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		logger.Get().Warn("kafka handler failed, retrying message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "retry message")
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}
