package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/MarketShip/config"
	"github.com/BearBump/MarketShip/internal/broker/kafka"
	"github.com/BearBump/MarketShip/internal/cache"
	"github.com/BearBump/MarketShip/internal/cache/rediscache"
	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/integrations/carrier/dhl"
	"github.com/BearBump/MarketShip/internal/integrations/carrier/fake"
	"github.com/BearBump/MarketShip/internal/integrations/carrier/fedex"
	"github.com/BearBump/MarketShip/internal/integrations/carrier/ups"
	"github.com/BearBump/MarketShip/internal/integrations/carrier/usps"
	"github.com/BearBump/MarketShip/internal/integrations/senders/httprelay"
	"github.com/BearBump/MarketShip/internal/integrations/senders/logsender"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/BearBump/MarketShip/internal/pubsub/redisbus"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/BearBump/MarketShip/internal/storage/pgstore"
	"go.uber.org/zap"
)

// OpenPostgresWithRetry keeps dialing until the database answers or wait
// runs out. Compose brings postgres up after the services.
func OpenPostgresWithRetry(ctx context.Context, connString string, wait time.Duration) (*pgstore.Storage, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgstore.New(connString)
		if err == nil {
			return st, nil
		}
		lastErr = err
		logger.Get().Info("postgres not ready", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("postgres is not ready after %s: %w", wait, lastErr)
}

// CarrierRegistry registers one client per supported carrier. The returned
// func releases the distributed limiter, if any.
func CarrierRegistry(cfg *config.Config, s Settings) (*carrier.Registry, func()) {
	var limiter carrier.Limiter
	closeFn := func() {}
	if s.CarrierRateLimiter == "redis" {
		cc := rediscache.NewCarrierCircuit(cfg.Redis.Addr())
		limiter = cc
		closeFn = func() { _ = cc.Close() }
	}
	reg := carrier.NewRegistry(limiter)
	reg.RegisterStatusCodes(ups.Code, ups.EventTypes)
	reg.RegisterStatusCodes(fedex.Code, fedex.EventTypes)
	reg.RegisterStatusCodes(dhl.Code, dhl.EventTypes)
	reg.RegisterStatusCodes(usps.Code, usps.EventTypes)

	if s.CarrierMode != "live" {
		for _, code := range []string{ups.Code, fedex.Code, dhl.Code, usps.Code} {
			reg.Register(code, fake.New(code))
		}
		return reg, closeFn
	}

	c := cfg.Carriers
	reg.Register(ups.Code, ups.New(c.UPS.BaseURL, c.UPS.APIKey, s.CarrierTimeout))
	reg.Register(fedex.Code, fedex.New(c.FedEx.BaseURL, c.FedEx.APIKey, s.CarrierTimeout))
	reg.Register(dhl.Code, dhl.New(c.DHL.BaseURL, c.DHL.APIKey, s.CarrierTimeout))
	reg.Register(usps.Code, usps.New(c.USPS.BaseURL, c.USPS.APIKey, s.CarrierTimeout))
	return reg, closeFn
}

// Senders builds the external channel senders. In relay mode a channel
// without a URL gets no sender, so its deliveries fail and are retried.
func Senders(cfg *config.Config, s Settings) map[models.Channel]notifications.Sender {
	out := map[models.Channel]notifications.Sender{}
	if s.SenderMode != "relay" {
		for _, ch := range []models.Channel{models.ChannelEmail, models.ChannelSMS, models.ChannelPush} {
			out[ch] = logsender.New(ch)
		}
		return out
	}
	urls := map[models.Channel]string{
		models.ChannelEmail: cfg.Senders.EmailURL,
		models.ChannelSMS:   cfg.Senders.SMSURL,
		models.ChannelPush:  cfg.Senders.PushURL,
	}
	for ch, url := range urls {
		if url == "" {
			logger.Get().Warn("no relay url for channel", zap.String("channel", string(ch)))
			continue
		}
		out[ch] = httprelay.New(url, cfg.Senders.APIKey, ch, s.SenderTimeout)
	}
	return out
}

// InAppBus picks the in-process bus or the Redis pub/sub bus shared by all
// market-api replicas.
func InAppBus(cfg *config.Config, s Settings) (pubsub.Bus, func()) {
	if s.InAppBus == "redis" {
		b := redisbus.New(cfg.Redis.Addr())
		return b, func() { _ = b.Close() }
	}
	return pubsub.NewMemoryBus(), func() {}
}

// NotificationService wires registry, dispatcher and storage.
func NotificationService(cfg *config.Config, s Settings, repo notifications.Repository, bus pubsub.Bus) (*notifications.Service, error) {
	reg, err := notifications.DefaultRegistry()
	if err != nil {
		return nil, err
	}
	d := notifications.NewDispatcher(repo, bus, Senders(cfg, s)).
		WithTimeout(s.SenderTimeout).
		WithRetryPolicy(s.MaxAttempts, notifications.DefaultBackoffConfig())
	return notifications.NewService(repo, reg, d).WithTimings(s.NotificationTTL, s.NotificationGrace), nil
}

// Requester picks how tracking ingestion hands notifications off. "kafka"
// publishes to the request topic; anything else calls direct in process.
func Requester(cfg *config.Config, s Settings, direct trackings.NotificationRequester) (trackings.NotificationRequester, func()) {
	if s.NotificationRequester != "kafka" {
		return direct, func() {}
	}
	p := kafka.NewProducer(cfg.Kafka.Brokers())
	return trackings.NewKafkaRequester(p, s.NotificationTopic), func() { _ = p.Close() }
}

// TrackingService wires ingestion, labels and live lookup. liveCache may be
// nil, which turns live tracking caching off.
func TrackingService(s Settings, repo trackings.Repository, carriers trackings.Fetcher, requester trackings.NotificationRequester, liveCache cache.BytesCache) *trackings.Service {
	return trackings.New(repo, carriers, requester, liveCache, s.LiveTrackingTTL).
		WithReconcileDelay(s.ReconcileDelay)
}
