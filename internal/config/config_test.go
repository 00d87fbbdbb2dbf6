package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg := Load()
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 30, cfg.AccessTTLMin)
	assert.Equal(t, 3, cfg.BookingMaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.BookingRetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.AMQP.Enabled)
	assert.Equal(t, "booking.events", cfg.AMQP.Queue)
}

func TestLoadMySQL(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORAGE_DRIVER", "MySQL")
	t.Setenv("DB_USER", "gym")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "gym")
	t.Setenv("BOOKING_MAX_RETRIES", "0")

	cfg := Load()
	assert.Equal(t, DriverMySQL, cfg.StorageDriver)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, 1, cfg.BookingMaxRetries)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "Yes")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "150ms")
	t.Setenv("X_LIST", " a, ,b ")
	assert.True(t, envBool("X_BOOL", false))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 150*time.Millisecond, envDur("X_DUR", time.Second))
	assert.Equal(t, []string{"a", "b"}, envList("X_LIST", ""))
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, WriteCost: 5, TTL: -time.Second}.normalize()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 1, c.WriteCost)
	assert.Equal(t, time.Duration(0), c.TTL)

	c = RateLimitConfig{Capacity: 10, WriteCost: 0, RefillInterval: time.Minute}.normalize()
	assert.Equal(t, 1, c.WriteCost)
	assert.Equal(t, time.Minute, c.RefillInterval)
}

func TestCacheable(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get,head")
	c := LoadCacheConfig()
	assert.True(t, c.Cacheable("GET", "/v1/classes"))
	assert.True(t, c.Cacheable("HEAD", "/v1/classes/3"))
	assert.False(t, c.Cacheable("POST", "/v1/classes"))
	assert.False(t, c.Cacheable("GET", "/v1/bookings"))
	assert.True(t, c.Cacheable("GET", "/v1/memberships/plans"))
	assert.True(t, c.Cacheable("GET", "/v1/trainers/2/classes"))
	assert.False(t, c.Cacheable("GET", "/v1/memberships"))
	assert.False(t, c.Cacheable("GET", "/v1/dashboard/member"))
}
