package sweeper

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/models"
	"github.com/BearBump/MarketShip/internal/services/notifications"
	"github.com/BearBump/MarketShip/internal/services/trackings"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSweeper_Run_StopsOnContextCancel(t *testing.T) {
	var calls atomic.Int64
	s := New("noop", 5*time.Millisecond, func(ctx context.Context) (Report, error) {
		calls.Add(1)
		return Report{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.GreaterOrEqual(t, calls.Load(), int64(1))
}

func TestSweeper_TriggerRunsImmediately(t *testing.T) {
	done := make(chan struct{}, 1)
	s := New("triggered", time.Hour, func(ctx context.Context) (Report, error) {
		done <- struct{}{}
		return Report{Claimed: 2, Processed: 2}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.Trigger()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("trigger did not run the job")
	}
	require.Eventually(t, func() bool { return s.Stats().TotalProcessed == 2 }, time.Second, 5*time.Millisecond)
	require.NotNil(t, s.Stats().LastTriggerAt)
}

func TestSweeper_StatsRecordErrors(t *testing.T) {
	s := New("failing", time.Minute, func(ctx context.Context) (Report, error) {
		return Report{Claimed: 1, Processed: 1, Errors: 1}, errors.New("db down")
	})
	s.RunOnce(context.Background())

	st := s.Stats()
	require.Equal(t, "failing", st.Name)
	require.EqualValues(t, 1, st.TotalCycles)
	require.EqualValues(t, 2, st.TotalErrors)
	require.Equal(t, "db down", st.LastError)
	require.NotNil(t, st.LastCycleAt)
	require.False(t, st.Running)
}

type fakeClaimer struct {
	items []*models.Notification
	limit int
	lease time.Duration
}

func (c *fakeClaimer) ClaimDueNotifications(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Notification, error) {
	c.limit, c.lease = limit, lease
	return c.items, nil
}

type fakeDispatcher struct {
	calls atomic.Int64
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, n *models.Notification) []notifications.DeliveryResult {
	d.calls.Add(1)
	if n.ID == "bad" {
		return []notifications.DeliveryResult{
			{Channel: models.ChannelInApp, Success: true},
			{Channel: models.ChannelEmail, Success: false, Err: errors.New("smtp")},
		}
	}
	return []notifications.DeliveryResult{{Channel: models.ChannelInApp, Success: true}}
}

func TestNotificationJob(t *testing.T) {
	claimer := &fakeClaimer{items: []*models.Notification{{ID: "a"}, {ID: "bad"}, {ID: "c"}}}
	d := &fakeDispatcher{}
	job := NotificationJob(claimer, d, NotificationSettings{BatchSize: 50, Concurrency: 2})

	rep, err := job(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Claimed: 3, Processed: 3, Errors: 1}, rep)
	require.EqualValues(t, 3, d.calls.Load())
	require.Equal(t, 50, claimer.limit)
	require.Equal(t, 2*time.Minute, claimer.lease)
}

type reconcilerFunc func(ctx context.Context) (trackings.ReconcileResult, error)

func (f reconcilerFunc) Reconcile(ctx context.Context) (trackings.ReconcileResult, error) { return f(ctx) }

func TestReconcileJob(t *testing.T) {
	job := ReconcileJob(reconcilerFunc(func(ctx context.Context) (trackings.ReconcileResult, error) {
		return trackings.ReconcileResult{Total: 4, Updated: 2, Errors: 1}, nil
	}))
	rep, err := job(context.Background())
	require.NoError(t, err)
	require.Equal(t, Report{Claimed: 4, Processed: 2, Errors: 1}, rep)
}

type purgerFunc func(ctx context.Context, now time.Time) (int64, error)

func (f purgerFunc) PurgeExpired(ctx context.Context, now time.Time) (int64, error) { return f(ctx, now) }

func TestPurgeJob(t *testing.T) {
	job := PurgeJob(purgerFunc(func(ctx context.Context, now time.Time) (int64, error) { return 7, nil }))
	rep, err := job(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, rep.Processed)

	job = PurgeJob(purgerFunc(func(ctx context.Context, now time.Time) (int64, error) { return 0, errors.New("x") }))
	_, err = job(context.Background())
	require.Error(t, err)
}
