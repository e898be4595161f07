// Package cache keeps specialist price lists close to the booking flow.
//
// Only service lists are cached.  Whether a specialist exists is always
// asked of the directory, so a deleted specialist can never be booked off
// a stale entry.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/specialist-booking/internal/config"
	"github.com/iliyamo/specialist-booking/internal/logger"
	"github.com/iliyamo/specialist-booking/internal/model"
)

// ServiceCache stores []model.ServiceOffering per specialist.  With a
// Redis client it shares entries across instances; otherwise it uses an
// in-process expiring LRU.  A disabled cache stores nothing.
type ServiceCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	lru *expirable.LRU[uint64, []model.ServiceOffering]
	log *slog.Logger
}

// NewServiceCache builds the cache.  rdb may be nil.
func NewServiceCache(cfg config.CacheConfig, rdb *redis.Client, log *slog.Logger) *ServiceCache {
	if log == nil {
		log = logger.Discard()
	}
	c := &ServiceCache{cfg: cfg, rdb: rdb, log: log}
	if cfg.Enabled && rdb == nil {
		c.lru = expirable.NewLRU[uint64, []model.ServiceOffering](cfg.Size, nil, cfg.TTL)
	}
	return c
}

func (c *ServiceCache) key(specialistID uint64) string {
	return fmt.Sprintf("%s:%d", c.cfg.Prefix, specialistID)
}

// Get returns the cached list and whether it was a hit.  Redis errors are
// treated as misses.
func (c *ServiceCache) Get(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, bool) {
	if c == nil || !c.cfg.Enabled {
		return nil, false
	}
	if c.lru != nil {
		return c.lru.Get(specialistID)
	}
	bs, err := c.rdb.Get(ctx, c.key(specialistID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "cache.services.get_failed", "specialist_id", specialistID, "error", err)
		}
		return nil, false
	}
	var out []model.ServiceOffering
	if err := json.Unmarshal(bs, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set stores list under specialistID for the configured TTL.
func (c *ServiceCache) Set(ctx context.Context, specialistID uint64, list []model.ServiceOffering) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.lru != nil {
		c.lru.Add(specialistID, list)
		return
	}
	bs, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := c.rdb.SetEx(ctx, c.key(specialistID), bs, c.cfg.TTL).Err(); err != nil {
		c.log.WarnContext(ctx, "cache.services.set_failed", "specialist_id", specialistID, "error", err)
	}
}

// Invalidate drops the entry for specialistID.
func (c *ServiceCache) Invalidate(ctx context.Context, specialistID uint64) {
	if c == nil || !c.cfg.Enabled {
		return
	}
	if c.lru != nil {
		c.lru.Remove(specialistID)
		return
	}
	_ = c.rdb.Del(ctx, c.key(specialistID)).Err()
}
