package main

import (
	"context"
	"time"

	"github.com/BearBump/MarketShip/config"
	"github.com/BearBump/MarketShip/internal/bootstrap"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/sweeper"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// workerStore is everything the three sweeps need from storage.
type workerStore interface {
	notifications.Repository
	trackings.Repository
	sweeper.NotificationClaimer
	sweeper.Purger
}

type workerFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (store workerStore, closeFn func(), err error)
	newCarriers func(cfg *config.Config, s bootstrap.Settings) (trackings.Fetcher, func())
	newBus      func(cfg *config.Config, s bootstrap.Settings) (pubsub.Bus, func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (workerStore, func(), error) {
			st, err := bootstrap.OpenPostgresWithRetry(ctx, cfg.Database.ConnString(), 60*time.Second)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCarriers: func(cfg *config.Config, s bootstrap.Settings) (trackings.Fetcher, func()) {
			return bootstrap.CarrierRegistry(cfg, s)
		},
		newBus: bootstrap.InAppBus,
	}
}

// buildSweepers wires the notification, reconcile and purge sweeps.
func buildSweepers(cfg *config.Config, s bootstrap.Settings, store workerStore, carriers trackings.Fetcher, bus pubsub.Bus) ([]*sweeper.Sweeper, func(), error) {
	notifSvc, err := bootstrap.NotificationService(cfg, s, store, bus)
	if err != nil {
		return nil, nil, err
	}
	requester, closeRequester := bootstrap.Requester(cfg, s, notifSvc)
	// reconcile always fetches fresh; no live cache in the worker
	trackSvc := bootstrap.TrackingService(s, store, carriers, requester, nil)

	sweepers := []*sweeper.Sweeper{
		sweeper.New("notifications", s.NotificationSweep, sweeper.NotificationJob(store, notifSvc, sweeper.NotificationSettings{
			BatchSize:   s.NotificationBatch,
			Concurrency: s.NotificationWorkers,
			Lease:       s.NotificationLease,
		})),
		sweeper.New("reconcile", s.ReconcileSweep, sweeper.ReconcileJob(trackSvc)),
		sweeper.New("purge", s.PurgeSweep, sweeper.PurgeJob(store)),
	}
	return sweepers, closeRequester, nil
}

// RunMarketWorker runs every sweep plus the ops server until ctx ends.
func RunMarketWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	s := bootstrap.Resolve(cfg)

	store, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	carriers, closeCarriers := f.newCarriers(cfg, s)
	defer closeCarriers()

	bus, closeBus := f.newBus(cfg, s)
	defer closeBus()
	if s.InAppBus != "redis" {
		logger.Get().Warn("in-app bus is process local, stream clients of market-api will not see worker deliveries")
	}

	sweepers, closeSweepers, err := buildSweepers(cfg, s, store, carriers, bus)
	if err != nil {
		return err
	}
	defer closeSweepers()

	if httpOpts.httpAddr == "" {
		httpOpts.httpAddr = s.WorkerHTTPAddr
	}
	httpOpts.sweepers = sweepers
	httpOpts.settings = s

	// one failing loop stops the others so the process exits and restarts
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	for _, sw := range sweepers {
		p.Go(func(ctx context.Context) error {
			logger.Get().Info("sweeper started",
				zap.String("name", sw.Name()),
				zap.String("interval", sw.Stats().Interval),
			)
			return sw.Run(ctx)
		})
	}
	p.Go(func(ctx context.Context) error {
		return runWorkerHTTPServer(ctx, httpOpts)
	})
	return p.Wait()
}
