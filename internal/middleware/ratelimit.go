package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-backend/internal/config"
)

// bucketScript charges ARGV[4] tokens from the bucket at KEYS[1].  The
// level refills continuously at ARGV[3] tokens per millisecond up to
// ARGV[2].  It returns {allowed, remaining, wait_ms}.
var bucketScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local level = capacity
local saved = redis.call('HMGET', KEYS[1], 'level', 'at')
if saved[1] and saved[2] then
	local idle = math.max(0, now - tonumber(saved[2]))
	level = math.min(capacity, tonumber(saved[1]) + idle * rate)
end

local wait = 0
if level >= cost then
	level = level - cost
else
	wait = math.ceil((cost - level) / rate)
end

redis.call('HSET', KEYS[1], 'level', tostring(level), 'at', now)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
if wait > 0 then
	return { 0, math.floor(level), wait }
end
return { 1, math.floor(level), 0 }
`)

// bucketPolicy is the per-key budget derived from RateLimitConfig.
type bucketPolicy struct {
	capacity  int
	writeCost int
	perMilli  float64
	idleTTL   time.Duration
}

func newBucketPolicy(cfg config.RateLimitConfig) bucketPolicy {
	p := bucketPolicy{capacity: max(cfg.Capacity, 1), writeCost: max(cfg.WriteCost, 1)}
	p.writeCost = min(p.writeCost, p.capacity)
	interval := max(cfg.RefillInterval.Milliseconds(), 1)
	refill := int64(max(cfg.RefillTokens, 1))
	p.perMilli = float64(refill) / float64(interval)
	// An idle bucket is full again after capacity/perMilli, rounded up.
	p.idleTTL = time.Duration((int64(p.capacity)*interval+refill-1)/refill) * time.Millisecond
	if cfg.TTL > 0 && cfg.TTL < p.idleTTL {
		p.idleTTL = cfg.TTL
	}
	return p
}

// cost charges writes more than reads.
func (p bucketPolicy) cost(method string) int {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return 1
	}
	return p.writeCost
}

// NewTokenBucket rate limits requests per key with a Redis token bucket.
// Redis failures let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	policy := newBucketPolicy(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			args := []interface{}{
				time.Now().UnixMilli(),
				policy.capacity,
				strconv.FormatFloat(policy.perMilli, 'g', -1, 64),
				policy.cost(c.Request().Method),
				policy.idleTTL.Milliseconds(),
			}
			vals, err := bucketScript.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
			if err != nil || len(vals) != 3 {
				c.Logger().Warnf("ratelimit: bucket %s unavailable: %v", key, err)
				return next(c)
			}
			allowed, remaining, waitMs := vals[0] == 1, vals[1], vals[2]

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(policy.capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if allowed {
				return next(c)
			}
			secs := int((waitMs + 999) / 1000)
			h.Set("Retry-After", strconv.Itoa(secs))
			if cfg.Debug {
				c.Logger().Infof("ratelimit: block key=%s wait=%dms", key, waitMs)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
		}
	}
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := userID(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
