package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/MarketShip/config"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/pkg/errors"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("failed to load config, %v", err))
	}
	if err := logger.Init(logger.FromConfig("market-worker", cfg.Log)); err != nil {
		panic(fmt.Sprintf("failed to init logger, %v", err))
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = RunMarketWorker(ctx, cfg, defaultWorkerFactories(), workerHTTPOpts{
		swaggerPath: os.Getenv("workerSwaggerPath"),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
