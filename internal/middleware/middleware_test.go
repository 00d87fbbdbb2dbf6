package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-backend/internal/config"
	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/utils"
)

const secret = "mw-secret"

func token(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func do(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	whoami := func(c echo.Context) error {
		p, _ := PrincipalFrom(c)
		return c.JSON(http.StatusOK, echo.Map{"id": p.ID, "role": p.Role})
	}
	e.GET("/me", whoami, JWTAuth(secret))
	e.GET("/admin", whoami, JWTAuth(secret), RequireRole(model.RoleAdmin))

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"not bearer", "/me", "Token abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"member ok", "/me", token(t, 7, model.RoleMember), http.StatusOK},
		{"member on admin route", "/admin", token(t, 7, model.RoleMember), http.StatusForbidden},
		{"trainer on admin route", "/admin", token(t, 8, model.RoleTrainer), http.StatusForbidden},
		{"admin ok", "/admin", token(t, 1, model.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, tt.path, tt.auth)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	rec := do(e, http.MethodGet, "/me", token(t, 7, model.RoleMember))
	assert.JSONEq(t, `{"id":7,"role":"member"}`, rec.Body.String())
}

func TestRequireRoleWithoutPrincipal(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/x", "").Code)
}

func TestTokenBucket(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip_user_route",
		Prefix:         "test:rl",
	}
	e := echo.New()
	e.GET("/v1/classes", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb))

	first := do(e, http.MethodGet, "/v1/classes", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/v1/classes", "").Code)

	blocked := do(e, http.MethodGet, "/v1/classes", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
}

func TestTokenBucketChargesWritesMore(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		WriteCost:      2,
		KeyStrategy:    "ip",
		Prefix:         "test:rl",
	}
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e := echo.New()
	e.GET("/v1/classes", ok, NewTokenBucket(cfg, rdb))
	e.POST("/v1/bookings", ok, NewTokenBucket(cfg, rdb))

	write := do(e, http.MethodPost, "/v1/bookings", "")
	assert.Equal(t, http.StatusOK, write.Code)
	assert.Equal(t, "1", write.Header().Get("X-RateLimit-Remaining"))

	blocked := do(e, http.MethodPost, "/v1/bookings", "")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "3600", blocked.Header().Get("Retry-After"))

	read := do(e, http.MethodGet, "/v1/classes", "")
	assert.Equal(t, http.StatusOK, read.Code)
	assert.Equal(t, "0", read.Header().Get("X-RateLimit-Remaining"))

	key := "test:rl:ip:192.0.2.1"
	require.True(t, mr.Exists(key))
	assert.Equal(t, 3*time.Hour, mr.TTL(key))
}

func TestBucketPolicyIdleTTL(t *testing.T) {
	base := config.RateLimitConfig{Capacity: 60, RefillTokens: 1, RefillInterval: time.Second}
	assert.Equal(t, time.Minute, newBucketPolicy(base).idleTTL)

	capped := base
	capped.TTL = 10 * time.Second
	assert.Equal(t, 10*time.Second, newBucketPolicy(capped).idleTTL)

	loose := base
	loose.TTL = time.Hour
	assert.Equal(t, time.Minute, newBucketPolicy(loose).idleTTL)

	p := newBucketPolicy(config.RateLimitConfig{Capacity: 2, WriteCost: 5})
	assert.Equal(t, 2, p.cost(http.MethodDelete))
	assert.Equal(t, 1, p.cost(http.MethodGet))
	assert.Equal(t, time.Duration(2), p.idleTTL/time.Millisecond)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, NewTokenBucket(cfg, rdb))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
	}
}

func TestBuildRateKeyUsesPrincipal(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/bookings")
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}

	assert.Equal(t, "rl:ip:10.0.0.1:user:anon:route:GET /v1/bookings", buildRateKey(cfg, c))
	SetPrincipal(c, model.Principal{ID: 9, Role: model.RoleMember})
	assert.Equal(t, "rl:user:9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}

func TestRedisCache(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		Paths:       []string{"/v1/classes"},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "test:cache",
	}
	calls := 0
	list := func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"calls": calls})
	}
	e := echo.New()
	e.GET("/v1/classes", list, NewRedisCache(cfg, rdb))
	e.GET("/v1/bookings", list, NewRedisCache(cfg, rdb))
	e.POST("/v1/classes", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, InvalidateCache(cfg, rdb))

	miss := do(e, http.MethodGet, "/v1/classes?start_date=2025-03-01", "")
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))
	hit := do(e, http.MethodGet, "/v1/classes?start_date=2025-03-01", "")
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Equal(t, echo.MIMEApplicationJSON, hit.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	other := do(e, http.MethodGet, "/v1/classes?start_date=2025-03-02", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	// paths outside the cacheable set always reach the handler
	do(e, http.MethodGet, "/v1/bookings", "")
	do(e, http.MethodGet, "/v1/bookings", "")
	assert.Equal(t, 4, calls)

	assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/v1/classes", "").Code)
	after := do(e, http.MethodGet, "/v1/classes?start_date=2025-03-01", "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.True(t, strings.Contains(after.Body.String(), `"calls":5`))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr, got)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
}
