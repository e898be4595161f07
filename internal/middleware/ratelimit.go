package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/specialist-booking/internal/config"
	"github.com/iliyamo/specialist-booking/internal/logger"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since its last refill, then takes one token if any is left.
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_ms.
// Returns {allowed, remaining, retry_after_ms}.
var takeToken = redis.NewScript(`
local now      = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill   = tonumber(ARGV[3])
local interval = tonumber(ARGV[4])
local ttl      = tonumber(ARGV[5])

local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last   = tonumber(redis.call('HGET', KEYS[1], 'last_ms'))
if tokens == nil or last == nil then
  tokens, last = capacity, now
end

local steps = math.floor(math.max(0, now - last) / interval)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  last = last + steps * interval
end

local allowed, retry = 0, 0
if tokens > 0 then
  allowed, tokens = 1, tokens - 1
else
  retry = math.max(0, interval - (now - last))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_ms', last)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, retry}
`)

// NewTokenBucket rate-limits the appointment API with a token bucket held
// in Redis.  Buckets are keyed by cfg.KeyStrategy; the default is per user
// and route, which needs JWTAuth to run first.  With no Redis client, or
// when disabled, every request passes.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *slog.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Discard()
	}
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := buildRateKey(cfg, c)

			raw, err := takeToken.Run(ctx, rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				cfg.TTL.Milliseconds(),
			).Int64Slice()
			if err != nil || len(raw) != 3 {
				log.WarnContext(ctx, "ratelimit.redis_error", "key", key, "error", err)
				return next(c)
			}
			allowed, remaining, retryMs := raw[0] == 1, raw[1], raw[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if allowed {
				return next(c)
			}

			secs := int(math.Ceil(float64(retryMs) / 1000))
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				log.InfoContext(ctx, "ratelimit.blocked", "key", key, "retry_ms", retryMs)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       echo.Map{"kind": "RateLimited", "message": "rate limit exceeded"},
				"retry_after": secs,
			})
		}
	}
}

// buildRateKey joins the prefix with the parts cfg.KeyStrategy selects.
// Unknown strategies bucket by ip, user and route together.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	part := map[string][]string{
		"ip":    {"ip", ip},
		"user":  {"user", currentUserID(c)},
		"route": {"route", c.Request().Method + " " + c.Path()},
	}

	var names []string
	switch s := strings.ToLower(cfg.KeyStrategy); s {
	case "ip", "user", "route", "ip_user", "ip_route", "user_route":
		names = strings.Split(s, "_")
	default:
		names = []string{"ip", "user", "route"}
	}

	parts := []string{cfg.Prefix}
	for _, n := range names {
		parts = append(parts, part[n]...)
	}
	return strings.Join(parts, ":")
}
