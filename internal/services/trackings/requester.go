package trackings

import (
	"context"
	"encoding/json"

	"github.com/BearBump/MarketShip/internal/broker/messages"
	"github.com/pkg/errors"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// KafkaRequester publishes notification requests for the notification
// consumer in market-api.
type KafkaRequester struct {
	producer Producer
	topic    string
}

func NewKafkaRequester(p Producer, topic string) *KafkaRequester {
	return &KafkaRequester{producer: p, topic: topic}
}

func (r *KafkaRequester) RequestNotification(ctx context.Context, req messages.NotificationRequested) error {
	b, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal notification request")
	}
	return r.producer.Publish(ctx, r.topic, req.Key(), b)
}
