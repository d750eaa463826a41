package httpclient

import (
	"net/http"
	"time"

	"github.com/BearBump/MarketShip/internal/logger"
	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound request with its status and latency.
type LoggingRoundTripper struct {
	Proxied http.RoundTripper
}

func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := lrt.Proxied.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		logger.Get().Warn("outbound request failed",
			zap.String("method", req.Method),
			zap.String("host", req.URL.Host),
			zap.String("path", req.URL.Path),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Get().Debug("outbound request",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)
	return resp, nil
}

// New returns an http.Client with request logging. Query strings are not
// logged because carrier API keys travel there.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{Proxied: http.DefaultTransport},
		Timeout:   timeout,
	}
}
