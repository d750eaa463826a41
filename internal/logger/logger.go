package logger

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BearBump/MarketShip/config"
)

// Config selects the encoder preset and level for one MarketShip process.
// Service is stamped on every entry so api and worker logs can share a sink.
type Config struct {
	Service     string
	Environment string
	Level       string
}

// FromConfig takes the log section of the loaded config for the named binary.
func FromConfig(service string, c config.LogConfig) Config {
	return Config{Service: service, Environment: c.Environment, Level: c.Level}
}

func (c Config) production() bool {
	return c.Environment == "production"
}

func (c Config) zapConfig() zap.Config {
	var zc zap.Config
	if c.production() {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	// unparsable levels keep the preset default
	if l, err := zapcore.ParseLevel(c.Level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(l)
	}
	if c.Service != "" {
		zc.InitialFields = map[string]interface{}{"service": c.Service}
	}
	return zc
}

// New builds a logger from cfg without touching the process logger.
func New(cfg Config) (*zap.Logger, error) {
	l, err := cfg.zapConfig().Build()
	if err != nil {
		return nil, errors.Wrapf(err, "build %s logger", cfg.Environment)
	}
	return l, nil
}

var globalLogger *zap.Logger

// Init installs the process logger used by Get.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
