package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"go.uber.org/zap"
)

type marketAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string
	// pause before re-attaching the consumer after a failed message
	consumerRetry time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

// requestHandler processes one notification.requested message.
type requestHandler func(ctx context.Context, value []byte) error

// runMarketAPI serves the REST API until ctx ends. With a consumer it also
// drains the notification request topic.
func runMarketAPI(ctx context.Context, opts marketAPIOpts, handler http.Handler, consumer kafkaConsumer, handle requestHandler) error {
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, handler)
	}()

	if consumer != nil {
		go consumeRequests(ctx, opts, consumer, handle)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func consumeRequests(ctx context.Context, opts marketAPIOpts, consumer kafkaConsumer, handle requestHandler) {
	retry := opts.consumerRetry
	if retry <= 0 {
		retry = time.Second
	}
	logger.Get().Info("kafka consumer started",
		zap.String("topic", opts.topic),
		zap.String("group", opts.consumerGroup),
	)
	for {
		err := consumer.Consume(ctx, func(_ []byte, value []byte) error {
			return handle(ctx, value)
		})
		if ctx.Err() != nil {
			return
		}
		// handler errors are retried inside Consume; only fetch or commit failures land here
		logger.Get().Warn("kafka consumer stopped, reattaching", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler) error {
	// no WriteTimeout: the notification stream is long-lived
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Get().Info("HTTP server listening", zap.String("addr", lis.Addr().String()))
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
