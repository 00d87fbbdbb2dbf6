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

// defaultCapacity applies when a new class omits capacity.
const defaultCapacity = 20

// WaitlistFiller promotes waitlisted bookings into a class's free places.
type WaitlistFiller interface {
	FillClass(ctx context.Context, classID uint64) ([]model.Booking, error)
}

// ClassHandler serves the class schedule endpoints.  Reads are public;
// writes sit behind the admin role.  When Waitlist is set, raising a
// class's capacity promotes waitlisted bookings straight away.
type ClassHandler struct {
	Classes  ClassStore
	Users    UserStore
	Waitlist WaitlistFiller
	Timeout  time.Duration
}

// NewClassHandler panics if any dependency is nil.
func NewClassHandler(classes ClassStore, users UserStore, timeout time.Duration) *ClassHandler {
	if classes == nil || users == nil {
		panic("nil store passed to NewClassHandler")
	}
	return &ClassHandler{Classes: classes, Users: users, Timeout: timeout}
}

type createClassReq struct {
	Title       string    `json:"title" validate:"required"`
	Description *string   `json:"description"`
	TrainerID   uint64    `json:"trainer_id" validate:"required"`
	Room        *string   `json:"room"`
	Capacity    *int      `json:"capacity" validate:"omitempty,gt=0"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
}

// updateClassReq carries a partial update; nil fields are left alone.
type updateClassReq struct {
	Title       *string    `json:"title" validate:"omitempty,min=1"`
	Description *string    `json:"description"`
	TrainerID   *uint64    `json:"trainer_id" validate:"omitempty,gt=0"`
	Room        *string    `json:"room"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gt=0"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
}

// List returns classes ordered by start time.  start_date and end_date
// bound the start time inclusively and accept RFC 3339 or YYYY-MM-DD.
func (h *ClassHandler) List(c echo.Context) error {
	var f repository.ClassFilter
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.StartFrom}, {"end_date", &f.StartTo}} {
		raw := c.QueryParam(q.name)
		if raw == "" {
			continue
		}
		t, err := parseTimeParam(raw)
		if err != nil {
			return writeError(c, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", booking.ErrInvalidInput, q.name))
		}
		*q.dst = &t
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Classes.List(ctx, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one class with its booked count.
func (h *ClassHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cl, err := h.Classes.GetByID(ctx, id)
	if err != nil {
		return writeError(c, classNotFound(err))
	}
	return c.JSON(http.StatusOK, cl)
}

// Create schedules a new class.
func (h *ClassHandler) Create(c echo.Context) error {
	var req createClassReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	cl := model.ClassSchedule{
		Title:       req.Title,
		Description: req.Description,
		TrainerID:   req.TrainerID,
		Room:        req.Room,
		Capacity:    defaultCapacity,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
	}
	if req.Capacity != nil {
		cl.Capacity = *req.Capacity
	}
	if err := checkTimes(cl); err != nil {
		return writeError(c, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.checkTrainer(c, cl.TrainerID); err != nil {
		return writeError(c, err)
	}
	if err := h.Classes.Create(ctx, &cl); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, model.ClassWithCount{ClassSchedule: cl})
}

// Update merges the provided fields into the class and validates the
// result.  It serves both PUT and PATCH.
func (h *ClassHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateClassReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cur, err := h.Classes.GetByID(ctx, id)
	if err != nil {
		return writeError(c, classNotFound(err))
	}
	cl := cur.ClassSchedule
	if req.Title != nil {
		cl.Title = *req.Title
	}
	if req.Description != nil {
		cl.Description = req.Description
	}
	if req.Room != nil {
		cl.Room = req.Room
	}
	if req.Capacity != nil {
		cl.Capacity = *req.Capacity
	}
	if req.StartTime != nil {
		cl.StartTime = req.StartTime.UTC()
	}
	if req.EndTime != nil {
		cl.EndTime = req.EndTime.UTC()
	}
	if req.TrainerID != nil {
		if err := h.checkTrainer(c, *req.TrainerID); err != nil {
			return writeError(c, err)
		}
		cl.TrainerID = *req.TrainerID
	}
	if err := checkTimes(cl); err != nil {
		return writeError(c, err)
	}
	if err := h.Classes.Update(ctx, &cl); err != nil {
		return writeError(c, classNotFound(err))
	}
	// capacity changes never demote, so the count read above still holds
	booked := cur.BookedCount
	if h.Waitlist != nil && cl.Capacity > cur.Capacity {
		promoted, err := h.Waitlist.FillClass(ctx, cl.ID)
		if err != nil {
			c.Logger().Warnf("class %d: waitlist promotion after capacity change failed: %v", cl.ID, err)
		}
		booked += len(promoted)
	}
	return c.JSON(http.StatusOK, model.ClassWithCount{ClassSchedule: cl, BookedCount: booked})
}

// Delete removes a class together with its bookings.
func (h *ClassHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Classes.Delete(ctx, id); err != nil {
		return writeError(c, classNotFound(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ClassHandler) checkTrainer(c echo.Context, id uint64) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	ok, err := h.Users.IsTrainer(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: trainer not found", booking.ErrNotFound)
	}
	return nil
}

func checkTimes(cl model.ClassSchedule) error {
	if !cl.EndTime.After(cl.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", booking.ErrInvalidInput)
	}
	return nil
}

func classNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: class not found", booking.ErrNotFound)
	}
	return err
}

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.ParseInLocation("2006-01-02", raw, time.UTC)
}
