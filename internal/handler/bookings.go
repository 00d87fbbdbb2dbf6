package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/booking"
)

// BookingHandler exposes the booking engine over HTTP.  Every route
// requires an authenticated principal.
type BookingHandler struct {
	Engine  *booking.Engine
	Timeout time.Duration
}

func NewBookingHandler(e *booking.Engine, timeout time.Duration) *BookingHandler {
	if e == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: e, Timeout: timeout}
}

type createBookingReq struct {
	ClassID uint64 `json:"class_id" validate:"required"`
}

type attendanceReq struct {
	BookingID uint64  `json:"booking_id" validate:"required"`
	Attended  *bool   `json:"attended" validate:"required"`
	Notes     *string `json:"notes" validate:"omitempty,max=1000"`
}

// List returns every booking for admins and the caller's own otherwise.
func (h *BookingHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Engine.ListBookings(ctx, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *BookingHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	b, err := h.Engine.GetBooking(ctx, id, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Create books the caller into a class.  The response status field
// tells whether the booking is confirmed or waitlisted.
func (h *BookingHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createBookingReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	b, err := h.Engine.CreateBooking(ctx, p.ID, req.ClassID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	b, err := h.Engine.CancelBooking(ctx, id, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// MarkAttendance records attendance for a booking (admin only).
func (h *BookingHandler) MarkAttendance(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	var req attendanceReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	a, err := h.Engine.MarkAttendance(ctx, req.BookingID, *req.Attended, req.Notes, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *BookingHandler) GetAttendance(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	a, err := h.Engine.GetAttendance(ctx, id, p)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}
