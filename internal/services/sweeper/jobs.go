package sweeper

import (
	"context"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

type NotificationClaimer interface {
	ClaimDueNotifications(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Notification, error)
}

type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n *models.Notification) []notifications.DeliveryResult
}

type NotificationSettings struct {
	BatchSize   int
	Concurrency int
	Lease       time.Duration
}

func (c NotificationSettings) withDefaults() NotificationSettings {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	return c
}

// NotificationJob claims pending notifications that are due and dispatches
// them with bounded concurrency. A notification counts as an error when any
// of its channels failed.
func NotificationJob(repo NotificationClaimer, d NotificationDispatcher, cfg NotificationSettings) Job {
	cfg = cfg.withDefaults()
	return func(ctx context.Context) (Report, error) {
		items, err := repo.ClaimDueNotifications(ctx, time.Now().UTC(), cfg.BatchSize, cfg.Lease)
		if err != nil {
			return Report{}, errors.Wrap(err, "claim due notifications")
		}
		rep := Report{Claimed: len(items)}

		p := pool.NewWithResults[bool]().WithMaxGoroutines(cfg.Concurrency)
		for _, n := range items {
			p.Go(func() bool {
				for _, r := range d.Dispatch(ctx, n) {
					if !r.Success {
						return false
					}
				}
				return true
			})
		}
		for _, ok := range p.Wait() {
			rep.Processed++
			if !ok {
				rep.Errors++
			}
		}
		return rep, nil
	}
}

type Reconciler interface {
	Reconcile(ctx context.Context) (trackings.ReconcileResult, error)
}

func ReconcileJob(r Reconciler) Job {
	return func(ctx context.Context) (Report, error) {
		res, err := r.Reconcile(ctx)
		return Report{Claimed: res.Total, Processed: res.Updated, Errors: res.Errors}, err
	}
}

type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

func PurgeJob(p Purger) Job {
	return func(ctx context.Context) (Report, error) {
		n, err := p.PurgeExpired(ctx, time.Now().UTC())
		if err != nil {
			return Report{}, err
		}
		if n > 0 {
			logger.Get().Info("purged expired notifications", zap.Int64("count", n))
		}
		return Report{Processed: int(n)}, nil
	}
}
