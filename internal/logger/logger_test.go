package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BearBump/MarketShip/config"
)

func TestInit(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })

	t.Run("Development", func(t *testing.T) {
		require.NoError(t, Init(Config{Environment: "development", Level: "debug"}))
		assert.True(t, globalLogger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("Production", func(t *testing.T) {
		require.NoError(t, Init(Config{Environment: "production", Level: "info"}))
		assert.False(t, globalLogger.Core().Enabled(zap.DebugLevel))
		assert.True(t, globalLogger.Core().Enabled(zap.InfoLevel))
	})

	t.Run("InvalidLevelKeepsDefault", func(t *testing.T) {
		require.NoError(t, Init(Config{Environment: "production", Level: "loud"}))
		assert.True(t, globalLogger.Core().Enabled(zap.InfoLevel))
	})
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig("market-worker", config.LogConfig{Environment: "production", Level: "warn"})
	assert.Equal(t, Config{Service: "market-worker", Environment: "production", Level: "warn"}, cfg)

	zc := cfg.zapConfig()
	assert.Equal(t, "market-worker", zc.InitialFields["service"])
	assert.Equal(t, "json", zc.Encoding)
	assert.False(t, zc.Level.Enabled(zap.InfoLevel))
	assert.True(t, zc.Level.Enabled(zap.WarnLevel))
}

func TestNew_DoesNotReplaceProcessLogger(t *testing.T) {
	globalLogger = nil
	l, err := New(Config{Service: "market-api", Environment: "development", Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Nil(t, globalLogger)
}

func TestGet_BeforeInitIsNop(t *testing.T) {
	globalLogger = nil
	l := Get()
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zap.ErrorLevel))
	Sync()
}
