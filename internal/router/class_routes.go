package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
)

// RegisterClasses registers the class schedule routes.  Reads are
// public and cached; writes require the admin role and flush the cache.
func RegisterClasses(e *echo.Echo, h *handler.ClassHandler, g Guards) {
	e.GET("/v1/classes", h.List, g.rateLimit, g.cache)
	e.GET("/v1/classes/:id", h.Get, g.rateLimit, g.cache)

	admin := []echo.MiddlewareFunc{
		g.auth,
		middleware.RequireRole(model.RoleAdmin),
		g.rateLimit,
		g.invalidate,
	}
	e.POST("/v1/classes", h.Create, admin...)
	e.PUT("/v1/classes/:id", h.Update, admin...)
	e.PATCH("/v1/classes/:id", h.Update, admin...)
	e.DELETE("/v1/classes/:id", h.Delete, admin...)
}
