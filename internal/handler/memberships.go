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

// MembershipStore is the plan and membership persistence.  It is
// satisfied by *repository.MembershipRepo and *memory.Memberships.
type MembershipStore interface {
	ListPlans(ctx context.Context) ([]model.MembershipPlan, error)
	GetPlan(ctx context.Context, id uint64) (model.MembershipPlan, error)
	CreatePlan(ctx context.Context, p *model.MembershipPlan) error
	UpdatePlan(ctx context.Context, p *model.MembershipPlan) error
	DeletePlan(ctx context.Context, id uint64) error
	ListMemberships(ctx context.Context, memberID *uint64) ([]model.Membership, error)
	GetMembership(ctx context.Context, id uint64) (model.Membership, error)
	CreateMembership(ctx context.Context, m *model.Membership) error
	SetMembershipStatus(ctx context.Context, id uint64, status model.MembershipStatus) (model.Membership, error)
}

// MembershipHandler serves membership plans and member memberships.
// Plans are public to read; everything else that writes is admin only.
type MembershipHandler struct {
	Memberships MembershipStore
	Users       UserStore
	Timeout     time.Duration
	now         func() time.Time
}

// NewMembershipHandler panics if any dependency is nil.
func NewMembershipHandler(ms MembershipStore, users UserStore, timeout time.Duration) *MembershipHandler {
	if ms == nil || users == nil {
		panic("nil store passed to NewMembershipHandler")
	}
	return &MembershipHandler{Memberships: ms, Users: users, Timeout: timeout, now: time.Now}
}

type planReq struct {
	Name         string  `json:"name" validate:"required"`
	Description  *string `json:"description"`
	DurationDays int     `json:"duration_days" validate:"required,gt=0"`
	Price        *int    `json:"price" validate:"required,gte=0"`
	Features     *string `json:"features"`
}

type updatePlanReq struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Description  *string `json:"description"`
	DurationDays *int    `json:"duration_days" validate:"omitempty,gt=0"`
	Price        *int    `json:"price" validate:"omitempty,gte=0"`
	Features     *string `json:"features"`
}

type createMembershipReq struct {
	MemberID uint64 `json:"member_id" validate:"required"`
	PlanID   uint64 `json:"plan_id" validate:"required"`
}

func (h *MembershipHandler) ListPlans(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Memberships.ListPlans(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CreatePlan adds a plan.  Plan names are unique.
func (h *MembershipHandler) CreatePlan(c echo.Context) error {
	var req planReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	p := model.MembershipPlan{
		Name:         req.Name,
		Description:  req.Description,
		DurationDays: req.DurationDays,
		Price:        *req.Price,
		Features:     req.Features,
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Memberships.CreatePlan(ctx, &p); err != nil {
		return writeError(c, planError(err))
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdatePlan merges the provided fields into the plan.  It serves both
// PUT and PATCH.
func (h *MembershipHandler) UpdatePlan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updatePlanReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	p, err := h.Memberships.GetPlan(ctx, id)
	if err != nil {
		return writeError(c, planError(err))
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.DurationDays != nil {
		p.DurationDays = *req.DurationDays
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Features != nil {
		p.Features = req.Features
	}
	if err := h.Memberships.UpdatePlan(ctx, &p); err != nil {
		return writeError(c, planError(err))
	}
	return c.JSON(http.StatusOK, p)
}

// DeletePlan removes a plan that no membership references.
func (h *MembershipHandler) DeletePlan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if err := h.Memberships.DeletePlan(ctx, id); err != nil {
		return writeError(c, planError(err))
	}
	return c.NoContent(http.StatusNoContent)
}

// List returns every membership to admins and the caller's own to
// everyone else.  Lapsed active memberships are reported as expired.
func (h *MembershipHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return writeError(c, err)
	}
	var memberID *uint64
	if !p.IsAdmin() {
		memberID = &p.ID
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	items, err := h.Memberships.ListMemberships(ctx, memberID)
	if err != nil {
		return writeError(c, err)
	}
	now := h.now()
	for i := range items {
		items[i] = items[i].AsOf(now)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get returns one membership to an admin or its owner.  Other members
// get 404 so ids of foreign memberships are not confirmed.
func (h *MembershipHandler) Get(c echo.Context) error {
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
	m, err := h.Memberships.GetMembership(ctx, id)
	if err != nil || !p.CanAccess(m.MemberID) {
		return writeError(c, membershipNotFound(err))
	}
	return c.JSON(http.StatusOK, m.AsOf(h.now()))
}

// Create starts a membership for a member now; it ends after the
// plan's duration.
func (h *MembershipHandler) Create(c echo.Context) error {
	var req createMembershipReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, req.MemberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("%w: member not found", booking.ErrNotFound)
		}
		return writeError(c, err)
	}
	plan, err := h.Memberships.GetPlan(ctx, req.PlanID)
	if err != nil {
		return writeError(c, planError(err))
	}
	start := h.now().UTC().Truncate(time.Microsecond)
	m := model.Membership{
		MemberID:  req.MemberID,
		PlanID:    plan.ID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, plan.DurationDays),
		Status:    model.MembershipActive,
	}
	if err := h.Memberships.CreateMembership(ctx, &m); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Cancel marks a membership cancelled.  Cancelling twice is a conflict.
func (h *MembershipHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()
	cur, err := h.Memberships.GetMembership(ctx, id)
	if err != nil {
		return writeError(c, membershipNotFound(err))
	}
	if cur.Status == model.MembershipCancelled {
		return writeError(c, fmt.Errorf("%w: membership is already cancelled", booking.ErrConflict))
	}
	m, err := h.Memberships.SetMembershipStatus(ctx, id, model.MembershipCancelled)
	if err != nil {
		return writeError(c, membershipNotFound(err))
	}
	return c.JSON(http.StatusOK, m)
}

func planError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: membership plan not found", booking.ErrNotFound)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: plan with this name already exists", booking.ErrConflict)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: plan is still referenced by memberships", booking.ErrConflict)
	}
	return err
}

func membershipNotFound(err error) error {
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: membership not found", booking.ErrNotFound)
	}
	return err
}
