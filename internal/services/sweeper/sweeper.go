// Package sweeper runs periodic background jobs: due notification dispatch,
// bulk tracking reconciliation and expired notification purge.
package sweeper

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"go.uber.org/zap"
)

// Report is what one job cycle did.
type Report struct {
	Claimed   int
	Processed int
	Errors    int
}

type Job func(ctx context.Context) (Report, error)

type Sweeper struct {
	name     string
	job      Job
	interval time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	running             atomic.Bool
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(name string, interval time.Duration, job Job) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		name:              name,
		job:               job,
		interval:          interval,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (s *Sweeper) Name() string { return s.name }

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (s *Sweeper) Trigger() {
	s.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	Name           string     `json:"name"`
	Interval       string     `json:"interval"`
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles    int64      `json:"totalCycles"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	Running        bool       `json:"running"`
	LastError      string     `json:"lastError,omitempty"`
}

func (s *Sweeper) Stats() Stats {
	st := Stats{
		Name:           s.name,
		Interval:       s.interval.String(),
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		TotalCycles:    s.totalCycles.Load(),
		TotalClaimed:   s.totalClaimed.Load(),
		TotalProcessed: s.totalProcessed.Load(),
		TotalErrors:    s.totalErrors.Load(),
		Running:        s.running.Load(),
	}
	if n := s.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := s.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	s.lastErrorMu.Lock()
	st.LastError = s.lastError
	s.lastErrorMu.Unlock()
	return st
}

// Run blocks until ctx is done, running the job on every tick and trigger.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.RunOnce(ctx)
		case <-s.triggerCh:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single cycle in the calling goroutine.
func (s *Sweeper) RunOnce(ctx context.Context) Report {
	s.running.Store(true)
	defer s.running.Store(false)
	s.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())
	s.totalCycles.Add(1)

	rep, err := s.job(ctx)
	s.totalClaimed.Add(int64(rep.Claimed))
	s.totalProcessed.Add(int64(rep.Processed))
	s.totalErrors.Add(int64(rep.Errors))
	if err != nil {
		s.totalErrors.Add(1)
		s.setLastError(err.Error())
		logger.Get().Error("sweeper cycle", zap.String("sweeper", s.name), zap.Error(err))
	}
	return rep
}

func (s *Sweeper) setLastError(msg string) {
	s.lastErrorMu.Lock()
	s.lastError = msg
	s.lastErrorMu.Unlock()
}
