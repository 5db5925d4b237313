package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

const (
	configCacheKey      = "pricing:config"
	configGenerationKey = "pricing:config:generation"
)

var errStaleFill = errors.New("configuration changed during load")

// CachedBackend serves Load from Redis and falls through to the wrapped
// backend on a miss. Every Save and Restore bumps a generation counter and
// drops the cached copy, before and after the write; a Load only fills the
// cache if the generation it saw before reading the backend is still current.
// A Redis fault is logged and bypassed: the wrapped backend stays the source
// of truth.
type CachedBackend struct {
	Backend
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

func NewCachedBackend(next Backend, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *CachedBackend {
	return &CachedBackend{Backend: next, rdb: rdb, ttl: ttl, log: log.Named("store.cache")}
}

func (c *CachedBackend) Load(ctx context.Context) (pricing.RateConfiguration, error) {
	data, err := c.rdb.Get(ctx, configCacheKey).Bytes()
	switch {
	case err == nil:
		var cfg pricing.RateConfiguration
		if err := json.Unmarshal(data, &cfg); err == nil {
			return cfg, nil
		}
		c.log.Warn("discarding undecodable cached pricing configuration")
	case !errors.Is(err, redis.Nil):
		c.log.Warn("pricing configuration cache read failed", zap.Error(err))
	}

	gen, genErr := c.generation(ctx, c.rdb)

	cfg, err := c.Backend.Load(ctx)
	if err != nil {
		return pricing.RateConfiguration{}, err
	}

	if genErr != nil {
		c.log.Warn("pricing configuration generation read failed", zap.Error(genErr))
		return cfg, nil
	}
	c.fill(ctx, cfg, gen)
	return cfg, nil
}

func (c *CachedBackend) Save(ctx context.Context, partial pricing.RateConfiguration) (pricing.RateConfiguration, error) {
	c.invalidate(ctx)
	defer c.invalidate(ctx)
	return c.Backend.Save(ctx, partial)
}

func (c *CachedBackend) Restore(ctx context.Context, ts int64) (pricing.RateConfiguration, error) {
	c.invalidate(ctx)
	defer c.invalidate(ctx)
	return c.Backend.Restore(ctx, ts)
}

// fill caches cfg unless a write bumped the generation since gen was read.
func (c *CachedBackend) fill(ctx context.Context, cfg pricing.RateConfiguration, gen int64) {
	data, err := json.Marshal(cfg)
	if err != nil {
		c.log.Warn("encode pricing configuration for cache", zap.Error(err))
		return
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, configCacheKey, data, c.ttl)
			return nil
		})
		return err
	}, configGenerationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		c.log.Debug("skipping cache fill, configuration changed during load")
	default:
		c.log.Warn("pricing configuration cache write failed", zap.Error(err))
	}
}

// getter is satisfied by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *CachedBackend) generation(ctx context.Context, r getter) (int64, error) {
	gen, err := r.Get(ctx, configGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// invalidate bumps the generation and drops the cached copy in one transaction.
func (c *CachedBackend) invalidate(ctx context.Context) {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, configGenerationKey)
		pipe.Del(ctx, configCacheKey)
		return nil
	})
	if err != nil {
		c.log.Warn("pricing configuration cache invalidation failed", zap.Error(err))
	}
}
