package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
)

// RegisterMemberships registers /v1/memberships.  The plan catalogue is
// public and cached; plan writes and membership writes are admin only.
// Members list and read their own memberships.
func RegisterMemberships(e *echo.Echo, h *handler.MembershipHandler, g Guards) {
	e.GET("/v1/memberships/plans", h.ListPlans, g.rateLimit, g.cache)

	admin := []echo.MiddlewareFunc{
		g.auth,
		middleware.RequireRole(model.RoleAdmin),
		g.rateLimit,
	}
	plans := e.Group("/v1/memberships/plans", admin...)
	plans.POST("", h.CreatePlan, g.invalidate)
	plans.PUT("/:id", h.UpdatePlan, g.invalidate)
	plans.PATCH("/:id", h.UpdatePlan, g.invalidate)
	plans.DELETE("/:id", h.DeletePlan, g.invalidate)

	grp := e.Group("/v1/memberships", g.auth, g.rateLimit)
	grp.GET("", h.List)
	grp.GET("/:id", h.Get)
	grp.POST("", h.Create, middleware.RequireRole(model.RoleAdmin))
	grp.PATCH("/:id/cancel", h.Cancel, middleware.RequireRole(model.RoleAdmin))
}
