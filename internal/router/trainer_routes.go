package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
)

// RegisterTrainers registers /v1/trainers.  Profiles and schedules are
// public and cached.  Admins create and delete profiles; an update is
// open to the profile's trainer as well, checked by the handler.
func RegisterTrainers(e *echo.Echo, h *handler.TrainerHandler, g Guards) {
	e.GET("/v1/trainers", h.List, g.rateLimit, g.cache)
	e.GET("/v1/trainers/:id", h.Get, g.rateLimit, g.cache)
	e.GET("/v1/trainers/:id/classes", h.ListClasses, g.rateLimit, g.cache)

	e.PUT("/v1/trainers/:id", h.Update, g.auth, g.rateLimit, g.invalidate)
	e.PATCH("/v1/trainers/:id", h.Update, g.auth, g.rateLimit, g.invalidate)

	admin := []echo.MiddlewareFunc{
		g.auth,
		middleware.RequireRole(model.RoleAdmin),
		g.rateLimit,
		g.invalidate,
	}
	e.POST("/v1/trainers", h.Create, admin...)
	e.DELETE("/v1/trainers/:id", h.Delete, admin...)
}
