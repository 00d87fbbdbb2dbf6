package config

import "time"

// RateLimitConfig drives the Redis token bucket.  Capacity tokens are
// available per key and RefillTokens flow back in evenly over each
// RefillInterval.  Reads cost one token and writes cost WriteCost, so a
// burst of booking attempts drains a member's bucket faster than
// browsing the timetable.  An idle bucket expires once it would be full
// again, or after TTL if that is shorter; TTL 0 means no cap.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	WriteCost      int
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		WriteCost:      envInt("RATE_LIMIT_WRITE_COST", 2),
		TTL:            envDur("RATE_LIMIT_TTL", 0),
		KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "gym:rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	}
	return def.normalize()
}

func (c RateLimitConfig) normalize() RateLimitConfig {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval < time.Millisecond {
		c.RefillInterval = time.Second
	}
	if c.WriteCost < 1 {
		c.WriteCost = 1
	}
	if c.WriteCost > c.Capacity {
		c.WriteCost = c.Capacity
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
	return c
}
