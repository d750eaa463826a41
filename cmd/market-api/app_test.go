package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/MarketShip/internal/api/httpapi"
	"github.com/BearBump/MarketShip/internal/pubsub"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	messages [][]byte
	failOnce atomic.Bool
	attached atomic.Int32
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	c.attached.Add(1)
	if c.failOnce.CompareAndSwap(true, false) {
		return errors.New("broker unavailable")
	}
	for _, m := range c.messages {
		if err := handler(nil, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func startAPI(t *testing.T, consumer kafkaConsumer, handle requestHandler) (string, context.CancelFunc, chan error) {
	t.Helper()
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	srv := httpapi.New(nil, nil, pubsub.NewMemoryBus(), httpapi.Options{SwaggerPath: sw})

	ctx, cancel := context.WithCancel(context.Background())
	addrCh := make(chan string, 1)
	opts := marketAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   sw,
		topic:         "t",
		consumerGroup: "g",
		consumerRetry: 10 * time.Millisecond,
		onListen:      func(addr string) { addrCh <- addr },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runMarketAPI(ctx, opts, srv.Routes(), consumer, handle) }()
	return <-addrCh, cancel, errCh
}

func TestRunMarketAPI_ServesSwaggerAndHealth(t *testing.T) {
	addr, cancel, errCh := startAPI(t, nil, nil)
	defer cancel()

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunMarketAPI_ConsumesRequestsAndReattaches(t *testing.T) {
	cons := &fakeConsumer{messages: [][]byte{[]byte(`{"user_id":"u1"}`)}}
	cons.failOnce.Store(true)

	got := make(chan []byte, 1)
	_, cancel, errCh := startAPI(t, cons, func(_ context.Context, value []byte) error {
		got <- value
		return nil
	})
	defer cancel()

	select {
	case v := <-got:
		require.JSONEq(t, `{"user_id":"u1"}`, string(v))
	case <-time.After(2 * time.Second):
		t.Fatal("message was not consumed")
	}
	require.EqualValues(t, 2, cons.attached.Load())

	cancel()
	<-errCh
}

func TestRunMarketAPI_MissingSwagger(t *testing.T) {
	err := runMarketAPI(context.Background(), marketAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "nope.json"),
	}, http.NotFoundHandler(), nil, nil)
	require.Error(t, err)
}
