package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/handler"
	"github.com/iliyamo/gym-backend/internal/middleware"
	"github.com/iliyamo/gym-backend/internal/model"
)

// RegisterBookings registers booking and attendance endpoints under
// /v1/bookings.  All routes require a valid JWT; ownership is enforced
// by the booking engine.  Writes change class occupancy and therefore
// flush cached class listings.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, g Guards) {
	grp := e.Group("/v1/bookings", g.auth, g.rateLimit)
	grp.GET("", h.List)
	grp.GET("/:id", h.Get)
	grp.POST("", h.Create, g.invalidate)
	grp.PATCH("/:id/cancel", h.Cancel, g.invalidate)
	grp.POST("/:id/cancel", h.Cancel, g.invalidate)

	grp.POST("/attendance", h.MarkAttendance, middleware.RequireRole(model.RoleAdmin))
	grp.GET("/:id/attendance", h.GetAttendance)
}
