// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-backend/internal/config"
	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
)

// Deps is everything the HTTP surface needs.  Redis may be nil, which
// disables rate limiting and caching.
type Deps struct {
	JWTSecret string
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Redis     *redis.Client
	Logger    *log.Logger

	Auth        *handler.AuthHandler
	Classes     *handler.ClassHandler
	Bookings    *handler.BookingHandler
	Memberships *handler.MembershipHandler
	Trainers    *handler.TrainerHandler
	Dashboards  *handler.DashboardHandler
}

// Guards bundles the per-route middleware shared by the Register funcs.
type Guards struct {
	auth       echo.MiddlewareFunc
	rateLimit  echo.MiddlewareFunc
	cache      echo.MiddlewareFunc
	invalidate echo.MiddlewareFunc
}

// New builds the echo instance with global middleware and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	if d.Logger != nil {
		e.Logger = d.Logger
	}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infoj(log.JSON{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
			})
			return nil
		},
	}))
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit("1M"))

	g := Guards{
		auth:       middleware.JWTAuth(d.JWTSecret),
		rateLimit:  middleware.NewTokenBucket(d.RateLimit, d.Redis),
		cache:      middleware.NewRedisCache(d.Cache, d.Redis),
		invalidate: middleware.InvalidateCache(d.Cache, d.Redis),
	}

	RegisterRoutes(e)
	RegisterAuth(e, d.Auth, g)
	RegisterClasses(e, d.Classes, g)
	RegisterBookings(e, d.Bookings, g)
	RegisterMemberships(e, d.Memberships, g)
	RegisterTrainers(e, d.Trainers, g)
	RegisterDashboards(e, d.Dashboards, g)
	return e
}

// RegisterRoutes registers routes that need no authentication: health
// probes and the websocket echo.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/health", handler.HealthInfo)
	e.GET("/docs/websocket", handler.WebSocketDocs)
	e.GET("/ws/echo", handler.EchoSocket)
}

// RegisterAuth registers /v1/auth.  Register and login are open; me
// requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
	grp := e.Group("/v1/auth")
	grp.POST("/register", a.Register, g.rateLimit)
	grp.POST("/login", a.Login, g.rateLimit)
	grp.GET("/me", a.Me, g.auth, g.rateLimit)
}
