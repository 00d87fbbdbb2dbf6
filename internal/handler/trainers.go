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

// TrainerStore is the trainer profile persistence.  It is satisfied by
// *repository.TrainerRepo and *memory.Trainers.
type TrainerStore interface {
	List(ctx context.Context) ([]model.TrainerProfile, error)
	GetByID(ctx context.Context, id uint64) (model.TrainerProfile, error)
	GetByUserID(ctx context.Context, userID uint64) (model.TrainerProfile, error)
	Create(ctx context.Context, t *model.TrainerProfile) error
	Update(ctx context.Context, t *model.TrainerProfile) error
	Delete(ctx context.Context, id uint64) error
}

// TrainerHandler serves trainer profiles.  Profiles and their class
// schedules are public; a trainer may edit their own profile.
type TrainerHandler struct {
	Trainers TrainerStore
	Users    UserStore
	Classes  ClassStore
	Timeout  time.Duration
}

// NewTrainerHandler panics if any dependency is nil.
func NewTrainerHandler(trainers TrainerStore, users UserStore, classes ClassStore, timeout time.Duration) *TrainerHandler {
	if trainers == nil || users == nil || classes == nil {
		panic("nil store passed to NewTrainerHandler")
	}
	return &TrainerHandler{Trainers: trainers, Users: users, Classes: classes, Timeout: timeout}
}

type createTrainerReq struct {
	UserID         uint64  `json:"user_id" validate:"required"`
	Bio            *string `json:"bio"`
	Specialties    *string `json:"specialties"`
	Certifications *string `json:"certifications"`
}

type updateTrainerReq struct {
	Bio            *string `json:"bio"`
	Specialties    *string `json:"specialties"`
	Certifications *string `json:"certifications"`
}

func (h *TrainerHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Trainers.List(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *TrainerHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	t, err := h.Trainers.GetByID(ctx, id)
	if err != nil {
		return writeError(c, trainerNotFound(err))
	}
	return c.JSON(http.StatusOK, t)
}

// ListClasses lists the classes run by the trainer, ordered by start time,
// with their booked counts.
func (h *TrainerHandler) ListClasses(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	t, err := h.Trainers.GetByID(ctx, id)
	if err != nil {
		return writeError(c, trainerNotFound(err))
	}
	items, err := h.Classes.List(ctx, repository.ClassFilter{TrainerID: &t.UserID})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create adds the profile of a user that has the trainer role.
func (h *TrainerHandler) Create(c echo.Context) error {
	var req createTrainerReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	u, err := h.Users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: user not found", booking.ErrNotFound)
		}
		return writeError(c, err)
	}
	if u.Role != model.RoleTrainer {
		return writeError(c, fmt.Errorf("%w: user must have trainer role", booking.ErrInvalidInput))
	}
	t := model.TrainerProfile{
		UserID:         u.ID,
		Bio:            req.Bio,
		Specialties:    req.Specialties,
		Certifications: req.Certifications,
	}
	if err := h.Trainers.Create(ctx, &t); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			err = fmt.Errorf("%w: trainer profile already exists for this user", booking.ErrConflict)
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Update merges the provided fields.  Admins may edit any profile and
// trainers only their own.
func (h *TrainerHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateTrainerReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	t, err := h.Trainers.GetByID(ctx, id)
	if err != nil {
		return writeError(c, trainerNotFound(err))
	}
	if !p.CanAccess(t.UserID) {
		return writeError(c, fmt.Errorf("%w: not enough permissions", booking.ErrForbidden))
	}
	if req.Bio != nil {
		t.Bio = req.Bio
	}
	if req.Specialties != nil {
		t.Specialties = req.Specialties
	}
	if req.Certifications != nil {
		t.Certifications = req.Certifications
	}
	if err := h.Trainers.Update(ctx, &t); err != nil {
		return writeError(c, trainerNotFound(err))
	}
	return c.JSON(http.StatusOK, t)
}

// Delete removes a profile.  The user account and classes stay.
func (h *TrainerHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Trainers.Delete(ctx, id); err != nil {
		return writeError(c, trainerNotFound(err))
	}
	return c.NoContent(http.StatusNoContent)
}

func trainerNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: trainer not found", booking.ErrNotFound)
	}
	return err
}
