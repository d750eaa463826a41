// Package bootstrap turns config into the wired components shared by
// market-api and market-worker.
package bootstrap

import (
	"time"

	"github.com/BearBump/MarketShip/config"
)

// Settings is the config with defaults applied.
type Settings struct {
	HTTPAddr              string
	ConsumerGroup         string
	NotificationTopic     string
	NotificationRequester string
	InAppBus              string
	LiveTrackingTTL       time.Duration
	ReconcileDelay        time.Duration

	SenderTimeout       time.Duration
	MaxAttempts         int
	NotificationGrace   time.Duration
	NotificationTTL     time.Duration
	CarrierTimeout      time.Duration
	CarrierMode         string
	CarrierRateLimiter  string
	SenderMode          string
	StreamHeartbeat     time.Duration
	WorkerHTTPAddr      string
	NotificationSweep   time.Duration
	NotificationBatch   int
	NotificationLease   time.Duration
	ReconcileSweep      time.Duration
	PurgeSweep          time.Duration
	NotificationWorkers int
}

func Resolve(cfg *config.Config) Settings {
	m := cfg.MarketShip
	s := Settings{
		HTTPAddr:              m.HTTPAddr,
		ConsumerGroup:         m.KafkaConsumerGroup,
		NotificationTopic:     cfg.Kafka.NotificationRequestedTopicName,
		NotificationRequester: m.NotificationRequester,
		InAppBus:              m.InAppBus,
		LiveTrackingTTL:       time.Duration(m.LiveTrackingTTLSeconds) * time.Second,
		ReconcileDelay:        time.Duration(m.ReconcileDelayMillis) * time.Millisecond,
		SenderTimeout:         time.Duration(m.SenderTimeoutSeconds) * time.Second,
		MaxAttempts:           m.NotificationMaxAttempts,
		NotificationGrace:     time.Duration(m.NotificationGraceSeconds) * time.Second,
		NotificationTTL:       time.Duration(m.NotificationDefaultTTLHours) * time.Hour,
		CarrierTimeout:        time.Duration(cfg.Carriers.TimeoutSeconds) * time.Second,
		CarrierMode:           cfg.Carriers.Mode,
		CarrierRateLimiter:    cfg.Carriers.RateLimiter,
		SenderMode:            cfg.Senders.Mode,
		StreamHeartbeat:       25 * time.Second,
		WorkerHTTPAddr:        m.WorkerHTTPAddr,
		NotificationSweep:     time.Duration(m.WorkerNotificationSweepSeconds) * time.Second,
		NotificationBatch:     m.WorkerNotificationBatchSize,
		NotificationLease:     time.Duration(m.WorkerNotificationLeaseSeconds) * time.Second,
		ReconcileSweep:        time.Duration(m.WorkerReconcileSweepSeconds) * time.Second,
		PurgeSweep:            time.Duration(m.WorkerPurgeSweepSeconds) * time.Second,
		NotificationWorkers:   10,
	}

	if s.HTTPAddr == "" {
		s.HTTPAddr = ":8080"
	}
	if s.ConsumerGroup == "" {
		s.ConsumerGroup = "market-api"
	}
	if s.NotificationTopic == "" {
		s.NotificationTopic = "notification.requested"
	}
	if s.NotificationRequester == "" {
		s.NotificationRequester = "direct"
	}
	if s.InAppBus == "" {
		s.InAppBus = "memory"
	}
	if s.LiveTrackingTTL <= 0 {
		s.LiveTrackingTTL = 5 * time.Minute
	}
	// a negative reconcile delay disables the pause between orders
	switch {
	case m.ReconcileDelayMillis < 0:
		s.ReconcileDelay = 0
	case m.ReconcileDelayMillis == 0:
		s.ReconcileDelay = time.Second
	}
	if s.SenderTimeout <= 0 {
		s.SenderTimeout = 10 * time.Second
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 5
	}
	if s.NotificationGrace <= 0 {
		s.NotificationGrace = 2 * time.Minute
	}
	if s.NotificationTTL <= 0 {
		s.NotificationTTL = 30 * 24 * time.Hour
	}
	if s.CarrierTimeout <= 0 {
		s.CarrierTimeout = 10 * time.Second
	}
	if s.CarrierMode == "" {
		s.CarrierMode = "fake"
	}
	if s.CarrierRateLimiter == "" {
		s.CarrierRateLimiter = "memory"
	}
	if s.SenderMode == "" {
		s.SenderMode = "log"
	}
	if s.WorkerHTTPAddr == "" {
		s.WorkerHTTPAddr = ":8082"
	}
	if s.NotificationSweep <= 0 {
		s.NotificationSweep = 30 * time.Second
	}
	if s.NotificationBatch <= 0 {
		s.NotificationBatch = 100
	}
	if s.NotificationLease <= 0 {
		s.NotificationLease = 2 * time.Minute
	}
	if s.ReconcileSweep <= 0 {
		s.ReconcileSweep = 15 * time.Minute
	}
	if s.PurgeSweep <= 0 {
		s.PurgeSweep = time.Hour
	}
	return s
}
