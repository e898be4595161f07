package config

// Redis backs the rate limiter and the service-list cache.  Both degrade
// gracefully when NewRedisClient returns nil.

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions builds client options.  REDIS_URL (redis:// or rediss://)
// wins when set and parses; otherwise REDIS_HOST+REDIS_PORT, then
// REDIS_ADDR, then localhost:6379, with REDIS_PASSWORD, REDIS_DB and
// REDIS_TLS applied.  Timeouts are short because the limiter sits on
// every appointment request.
func RedisOptions() *redis.Options {
	if u := envStr("REDIS_URL", ""); u != "" {
		if opts, err := redis.ParseURL(u); err == nil {
			return withTimeouts(opts)
		}
	}

	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = net.JoinHostPort(host, port)
	}
	opts := &redis.Options{
		Addr:     addr,
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
	}
	if envBool("REDIS_TLS", false) {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return withTimeouts(opts)
}

func withTimeouts(o *redis.Options) *redis.Options {
	o.DialTimeout = 2 * time.Second
	o.ReadTimeout = 500 * time.Millisecond
	o.WriteTimeout = 500 * time.Millisecond
	return o
}

// NewRedisClient connects with RedisOptions and pings with a short
// timeout.  It returns nil when Redis is disabled (REDIS_ENABLED=false)
// or unreachable.
func NewRedisClient() *redis.Client {
	if !envBool("REDIS_ENABLED", true) {
		return nil
	}
	client := redis.NewClient(RedisOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
