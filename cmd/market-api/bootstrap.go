package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/MarketShip/config"
	"github.com/BearBump/MarketShip/internal/api/httpapi"
	"github.com/BearBump/MarketShip/internal/bootstrap"
	"github.com/BearBump/MarketShip/internal/broker/kafka"
	"github.com/BearBump/MarketShip/internal/cache/rediscache"
	"github.com/BearBump/MarketShip/internal/logger"
	"go.uber.org/zap"
)

type marketAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     marketAPIOpts
	server   *httpapi.Server
	consumer *kafka.Consumer
	handle   requestHandler
	closers  []func()
}

func mustBootstrapMarketAPI() *marketAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}
	if err := logger.Init(logger.FromConfig("market-api", cfg.Log)); err != nil {
		panic(fmt.Sprintf("failed to init logger, %v", err))
	}
	s := bootstrap.Resolve(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app := &marketAPIApp{ctx: ctx, cancel: cancel}

	st, err := bootstrap.OpenPostgresWithRetry(ctx, cfg.Database.ConnString(), 60*time.Second)
	if err != nil {
		panic(err)
	}
	app.closers = append(app.closers, st.Close)

	bus, closeBus := bootstrap.InAppBus(cfg, s)
	app.closers = append(app.closers, closeBus)

	notifSvc, err := bootstrap.NotificationService(cfg, s, st, bus)
	if err != nil {
		panic(err)
	}

	carriers, closeCarriers := bootstrap.CarrierRegistry(cfg, s)
	app.closers = append(app.closers, closeCarriers)

	requester, closeRequester := bootstrap.Requester(cfg, s, notifSvc)
	app.closers = append(app.closers, closeRequester)

	rc := rediscache.New(cfg.Redis.Addr())
	app.closers = append(app.closers, func() { _ = rc.Close() })

	trackSvc := bootstrap.TrackingService(s, st, carriers, requester, rc)

	app.server = httpapi.New(trackSvc, notifSvc, bus, httpapi.Options{
		SwaggerPath:     os.Getenv("swaggerPath"),
		StreamHeartbeat: s.StreamHeartbeat,
	})
	app.opts = marketAPIOpts{
		httpAddr:      s.HTTPAddr,
		swaggerPath:   os.Getenv("swaggerPath"),
		topic:         s.NotificationTopic,
		consumerGroup: s.ConsumerGroup,
	}

	if s.NotificationRequester == "kafka" {
		app.consumer = kafka.NewConsumer(cfg.Kafka.Brokers(), s.NotificationTopic, s.ConsumerGroup)
		app.handle = notifSvc.HandleRequestedMessage
	}

	logger.Get().Info("market-api configured",
		zap.String("requester", s.NotificationRequester),
		zap.String("in_app_bus", s.InAppBus),
		zap.String("carriers", s.CarrierMode),
		zap.String("senders", s.SenderMode),
	)
	return app
}

func (a *marketAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	logger.Sync()
}

func (a *marketAPIApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runMarketAPI(a.ctx, a.opts, a.server.Routes(), consumer, a.handle)
}
