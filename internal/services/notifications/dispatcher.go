package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/BearBump/MarketShip/internal/storage"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	defaultSenderTimeout = 10 * time.Second
	defaultMaxAttempts   = 5
)

// Sender delivers one notification over an external channel. address is the
// channel address stored on the notification and may be empty, in which
// case the sender resolves it from the user id.
type Sender interface {
	Send(ctx context.Context, n *models.Notification, address string) error
}

type SenderFunc func(ctx context.Context, n *models.Notification, address string) error

func (f SenderFunc) Send(ctx context.Context, n *models.Notification, address string) error {
	return f(ctx, n, address)
}

// DeliveryStore is the slice of storage the dispatcher writes to. Every
// method is a single atomic update.
type DeliveryStore interface {
	MarkChannelDelivered(ctx context.Context, id string, ch models.Channel, at time.Time) error
	FinalizeDelivery(ctx context.Context, id string) (models.NotificationStatus, error)
	RecordFailedAttempt(ctx context.Context, id string, nextAttemptAt time.Time, maxAttempts int) (int, models.NotificationStatus, error)
}

type DeliveryResult struct {
	Channel models.Channel `json:"channel"`
	Success bool           `json:"success"`
	Err     error          `json:"-"`
}

type Dispatcher struct {
	store   DeliveryStore
	bus     pubsub.Bus
	senders map[models.Channel]Sender

	timeout     time.Duration
	maxAttempts int
	backoff     *Backoff
	now         func() time.Time
}

func NewDispatcher(store DeliveryStore, bus pubsub.Bus, senders map[models.Channel]Sender) *Dispatcher {
	if senders == nil {
		senders = map[models.Channel]Sender{}
	}
	return &Dispatcher{
		store:       store,
		bus:         bus,
		senders:     senders,
		timeout:     defaultSenderTimeout,
		maxAttempts: defaultMaxAttempts,
		backoff:     NewBackoff(DefaultBackoffConfig()),
		now:         time.Now,
	}
}

func (d *Dispatcher) WithTimeout(timeout time.Duration) *Dispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

func (d *Dispatcher) WithRetryPolicy(maxAttempts int, cfg BackoffConfig) *Dispatcher {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	d.backoff = NewBackoff(cfg)
	return d
}

// Deliver attempts every enabled, undelivered channel of n concurrently and
// waits for all of them. n is updated in place with the outcome. Failures
// are reported per channel and never returned.
func (d *Dispatcher) Deliver(ctx context.Context, n *models.Notification) []DeliveryResult {
	p := pool.NewWithResults[DeliveryResult]()
	for _, ch := range models.AllChannels {
		st := n.Channels.Get(ch)
		if !st.Enabled || st.Delivered {
			continue
		}
		address := st.Address
		p.Go(func() DeliveryResult {
			return d.deliverChannel(ctx, n, ch, address)
		})
	}
	results := p.Wait()

	for _, r := range results {
		if !r.Success {
			logger.Get().Warn("notification channel failed",
				zap.String("notification_id", n.ID),
				zap.String("channel", string(r.Channel)),
				zap.Error(r.Err),
			)
			continue
		}
		st := n.Channels.Get(r.Channel)
		at := d.now().UTC()
		st.Delivered = true
		st.DeliveredAt = &at
	}

	d.settle(ctx, n)
	return results
}

func (d *Dispatcher) deliverChannel(ctx context.Context, n *models.Notification, ch models.Channel, address string) (res DeliveryResult) {
	res.Channel = ch
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Err = &DeliveryError{Channel: ch, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	var err error
	if ch == models.ChannelInApp {
		err = d.deliverInApp(ctx, n)
	} else {
		err = d.deliverExternal(ctx, n, ch, address)
	}
	if err != nil {
		res.Err = &DeliveryError{Channel: ch, Err: err}
		return res
	}
	res.Success = true
	return res
}

func (d *Dispatcher) deliverInApp(ctx context.Context, n *models.Notification) error {
	at := d.now().UTC()
	if err := d.store.MarkChannelDelivered(ctx, n.ID, models.ChannelInApp, at); err != nil {
		return err
	}
	if d.bus == nil {
		return nil
	}
	snapshot := *n
	snapshot.Title = n.FormattedTitle()
	snapshot.Message = n.FormattedMessage()
	ev := pubsub.Event{Type: pubsub.EventNotification, UserID: n.UserID, Notification: &snapshot, At: at}
	if err := d.bus.Publish(ctx, n.UserID, ev); err != nil {
		// live fan-out only; the stored flag is what counts
		logger.Get().Warn("publish in-app notification", zap.String("notification_id", n.ID), zap.Error(err))
	}
	return nil
}

func (d *Dispatcher) deliverExternal(ctx context.Context, n *models.Notification, ch models.Channel, address string) error {
	sender, ok := d.senders[ch]
	if !ok {
		return errors.Errorf("no sender configured for %s", ch)
	}
	sctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := sender.Send(sctx, n, address); err != nil {
		return err
	}
	return d.store.MarkChannelDelivered(ctx, n.ID, ch, d.now().UTC())
}

// settle runs after every channel finished: it promotes the notification to
// delivered, or counts a failed attempt and schedules the next one.
func (d *Dispatcher) settle(ctx context.Context, n *models.Notification) {
	status, err := d.store.FinalizeDelivery(ctx, n.ID)
	if err != nil {
		logger.Get().Error("finalize delivery", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	n.Status = status
	if status != models.NotificationStatusPending {
		return
	}

	next := d.now().UTC().Add(d.backoff.Delay(n.Attempts + 1))
	attempts, status, err := d.store.RecordFailedAttempt(ctx, n.ID, next, d.maxAttempts)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Get().Error("record failed attempt", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}
	n.Attempts = attempts
	n.Status = status
	n.NextAttemptAt = next
	if status == models.NotificationStatusFailed {
		logger.Get().Warn("notification gave up",
			zap.String("notification_id", n.ID),
			zap.Int("attempts", attempts),
		)
	}
}
