package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCarrierCircuit(t *testing.T) {
	mr := miniredis.RunT(t)
	cc := NewCarrierCircuit(mr.Addr())
	ctx := context.Background()

	require.True(t, cc.CanCall(ctx, "fedex"))

	cc.RecordCall(ctx, "fedex", false)
	require.True(t, cc.CanCall(ctx, "fedex"))
	require.True(t, mr.Exists("carrier:lastcall:fedex"))

	cc.RecordCall(ctx, "fedex", true)
	require.False(t, cc.CanCall(ctx, "fedex"))
	require.True(t, cc.CanCall(ctx, "ups"))

	second := NewCarrierCircuit(mr.Addr())
	require.False(t, second.CanCall(ctx, "fedex"), "state is shared between instances")

	mr.FastForward(time.Hour + time.Second)
	require.True(t, cc.CanCall(ctx, "fedex"))
}

func TestCarrierCircuit_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	cc := NewCarrierCircuit(mr.Addr())
	mr.Close()

	require.True(t, cc.CanCall(context.Background(), "dhl"))
}
