package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
)

// RegisterDashboards registers /v1/dashboard.  Responses are per caller
// and never cached.
func RegisterDashboards(e *echo.Echo, h *handler.DashboardHandler, g Guards) {
	grp := e.Group("/v1/dashboard", g.auth, g.rateLimit)
	grp.GET("/admin", h.Admin, middleware.RequireRole(model.RoleAdmin))
	grp.GET("/member", h.Member)
	grp.GET("/trainer", h.Trainer, middleware.RequireRole(model.RoleTrainer))
}
