package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/BearBump/MarketShip/internal/integrations/carrier"
	"github.com/BearBump/MarketShip/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	circuitKeyPrefix  = "carrier:circuit:"
	lastCallKeyPrefix = "carrier:lastcall:"
	lastCallTTL       = 24 * time.Hour
)

// CarrierCircuit is carrier.Limiter shared across processes. An open circuit
// is a key whose TTL is the cooldown, so it clears itself.
type CarrierCircuit struct {
	c        *redis.Client
	cooldown time.Duration
}

var _ carrier.Limiter = (*CarrierCircuit)(nil)

func NewCarrierCircuit(addr string) *CarrierCircuit {
	return &CarrierCircuit{
		c:        redis.NewClient(&redis.Options{Addr: addr}),
		cooldown: carrier.DefaultCooldown,
	}
}

// CanCall fails open when Redis is unreachable.
func (cc *CarrierCircuit) CanCall(ctx context.Context, carrierCode string) bool {
	n, err := cc.c.Exists(ctx, circuitKeyPrefix+carrierCode).Result()
	if err != nil {
		logger.Get().Warn("carrier circuit check failed", zap.String("carrier", carrierCode), zap.Error(err))
		return true
	}
	return n == 0
}

func (cc *CarrierCircuit) RecordCall(ctx context.Context, carrierCode string, wasRateLimited bool) {
	now := time.Now()
	pipe := cc.c.TxPipeline()
	pipe.Set(ctx, lastCallKeyPrefix+carrierCode, strconv.FormatInt(now.UnixMilli(), 10), lastCallTTL)
	if wasRateLimited {
		reset := now.Add(cc.cooldown)
		pipe.Set(ctx, circuitKeyPrefix+carrierCode, strconv.FormatInt(reset.UnixMilli(), 10), cc.cooldown)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Get().Warn("carrier circuit record failed", zap.String("carrier", carrierCode), zap.Error(err))
	}
}

func (cc *CarrierCircuit) Close() error {
	return cc.c.Close()
}
