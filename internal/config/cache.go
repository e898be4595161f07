package config

import "time"

// CacheConfig controls caching of specialist service lists (name + price)
// fetched from the directory.  Specialist existence is never cached, only
// the price list used to resolve a booking's service.  When Redis is not
// reachable an in-process LRU of Size entries is used instead.  It is off
// by default: while on, a booking can be charged a price up to TTL old.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
	Size    int
}

// LoadCacheConfig reads CACHE_* variables, falling back to defaults.
func LoadCacheConfig() CacheConfig {
	c := CacheConfig{
		Enabled: envBool("CACHE_ENABLED", false),
		TTL:     envDur("CACHE_TTL", 30*time.Second),
		Prefix:  envStr("CACHE_PREFIX", "cache:services"),
		Size:    envInt("CACHE_SIZE", 1024),
	}
	if c.TTL <= 0 {
		c.TTL = 30 * time.Second
	}
	if c.Size < 1 {
		c.Size = 1
	}
	return c
}
