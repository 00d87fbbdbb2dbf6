package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
)

// DashboardStore computes dashboard aggregates.  It is satisfied by
// *repository.DashboardRepo and *memory.Dashboards.
type DashboardStore interface {
	Admin(ctx context.Context, now time.Time) (model.AdminDashboard, error)
	Member(ctx context.Context, memberID uint64, now time.Time) (model.MemberDashboard, error)
	Trainer(ctx context.Context, userID uint64, now time.Time) (model.TrainerDashboard, error)
}

// DashboardHandler serves the per-role dashboards.  Role gates are
// applied by the router.
type DashboardHandler struct {
	Dashboards DashboardStore
	Timeout    time.Duration
	now        func() time.Time
}

func NewDashboardHandler(d DashboardStore, timeout time.Duration) *DashboardHandler {
	if d == nil {
		panic("nil store passed to NewDashboardHandler")
	}
	return &DashboardHandler{Dashboards: d, Timeout: timeout, now: time.Now}
}

func (h *DashboardHandler) Admin(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	d, err := h.Dashboards.Admin(ctx, h.now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Member summarizes the caller's membership and bookings.
func (h *DashboardHandler) Member(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	d, err := h.Dashboards.Member(ctx, p.ID, h.now())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Trainer summarizes the caller's schedule.  A trainer without a
// profile gets 404.
func (h *DashboardHandler) Trainer(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	d, err := h.Dashboards.Trainer(ctx, p.ID, h.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: trainer profile not found", booking.ErrNotFound)
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
