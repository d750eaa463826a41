package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/MarketShip/internal/bootstrap"
	"github.com/BearBump/MarketShip/internal/services/sweeper"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	sweepers []*sweeper.Sweeper
	settings bootstrap.Settings
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.swaggerPath != "" {
		if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
			return fmt.Errorf("worker swagger file not found: %s", opts.swaggerPath)
		}
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := &http.Server{Handler: workerRoutes(opts), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func workerRoutes(opts workerHTTPOpts) chi.Router {
	byName := make(map[string]*sweeper.Sweeper, len(opts.sweepers))
	for _, sw := range opts.sweepers {
		byName[sw.Name()] = sw
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(opts.sweepers) == 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no sweepers wired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		out := make([]sweeper.Stats, 0, len(opts.sweepers))
		for _, sw := range opts.sweepers {
			out = append(out, sw.Stats())
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		s := opts.settings
		// operational settings only, no credentials
		writeJSON(w, http.StatusOK, map[string]any{
			"notificationSweep":     s.NotificationSweep.String(),
			"notificationBatchSize": s.NotificationBatch,
			"notificationWorkers":   s.NotificationWorkers,
			"notificationLease":     s.NotificationLease.String(),
			"maxAttempts":           s.MaxAttempts,
			"senderTimeout":         s.SenderTimeout.String(),
			"reconcileSweep":        s.ReconcileSweep.String(),
			"reconcileDelay":        s.ReconcileDelay.String(),
			"purgeSweep":            s.PurgeSweep.String(),
			"carrierMode":           s.CarrierMode,
			"carrierRateLimiter":    s.CarrierRateLimiter,
			"senderMode":            s.SenderMode,
			"inAppBus":              s.InAppBus,
			"notificationRequester": s.NotificationRequester,
		})
	})

	r.Post("/trigger/{job}", func(w http.ResponseWriter, r *http.Request) {
		sw, ok := byName[chi.URLParam(r, "job")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job"})
			return
		}
		sw.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]any{"job": sw.Name(), "triggered": true})
	})

	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}
	return r
}
