package router

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-backend/internal/model"
)

func TestDashboardRoutes(t *testing.T) {
	s := newServer(t, nil)
	admin, _ := s.register("admin@gym.test", model.RoleAdmin)
	coach, coachID := s.register("coach@gym.test", model.RoleTrainer)
	newbie, _ := s.register("newbie@gym.test", model.RoleTrainer)
	alice, aliceID := s.register("alice@gym.test", model.RoleMember)
	bob, _ := s.register("bob@gym.test", model.RoleMember)

	require.Equal(t, http.StatusCreated,
		s.do(http.MethodPost, "/v1/trainers", admin, echo.Map{"user_id": coachID, "specialties": "hiit"}).Code)
	plan := s.createPlan(admin, "Monthly", 30, 2500)
	require.Equal(t, http.StatusCreated,
		s.do(http.MethodPost, "/v1/memberships", admin, echo.Map{"member_id": aliceID, "plan_id": plan.ID}).Code)

	classID := s.createClass(admin, coachID, 1)
	s.book(alice, classID)
	s.book(bob, classID)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"admin as member", "/v1/dashboard/admin", alice, http.StatusForbidden},
		{"trainer as member", "/v1/dashboard/trainer", alice, http.StatusForbidden},
		{"anonymous", "/v1/dashboard/member", "", http.StatusUnauthorized},
		{"trainer without profile", "/v1/dashboard/trainer", newbie, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.path, tt.token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	t.Run("admin", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/dashboard/admin", admin, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d model.AdminDashboard
		decode(t, rec, &d)
		assert.Equal(t, 2, d.TotalMembers)
		assert.Equal(t, 1, d.ActiveMemberships)
		assert.Equal(t, 1, d.TotalTrainers)
		assert.Equal(t, 0, d.UpcomingClasses)
		assert.Equal(t, 1, d.MonthlyBookings)
		assert.InDelta(t, 25.0, d.MonthlyRevenue, 0.001)
		assert.Equal(t, 2, d.RecentBookingsCount)
	})

	t.Run("member", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/dashboard/member", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d model.MemberDashboard
		decode(t, rec, &d)
		require.NotNil(t, d.Membership)
		assert.Equal(t, "Monthly", d.Membership.PlanName)
		assert.Equal(t, model.MembershipActive, d.Membership.Status)
		assert.InDelta(t, 30, d.Membership.DaysRemaining, 1)
		assert.Equal(t, 1, d.TotalBookings)
		require.Len(t, d.UpcomingClasses, 1)
		assert.Equal(t, "Spin", d.UpcomingClasses[0].ClassTitle)

		rec = s.do(http.MethodGet, "/v1/dashboard/member", bob, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &d)
		assert.Nil(t, d.Membership)
		assert.Equal(t, 0, d.TotalBookings)
		assert.Empty(t, d.UpcomingClasses)
	})

	t.Run("trainer", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/v1/dashboard/trainer", coach, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var d model.TrainerDashboard
		decode(t, rec, &d)
		assert.Equal(t, "coach@gym.test", d.TrainerName)
		require.NotNil(t, d.Specialties)
		assert.Equal(t, "hiit", *d.Specialties)
		assert.Equal(t, 1, d.TotalClasses)
		assert.Equal(t, 1, d.TotalBookings)
		require.Len(t, d.UpcomingClasses, 1)
		assert.Equal(t, classID, d.UpcomingClasses[0].ClassID)
		assert.Equal(t, 1, d.UpcomingClasses[0].Booked)
		assert.Equal(t, 1, d.UpcomingClasses[0].Capacity)
	})
}
