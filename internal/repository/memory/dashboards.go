package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
)

// Dashboards computes the dashboard aggregates with the method set of
// repository.DashboardRepo.
func (s *Store) Dashboards() *Dashboards { return &Dashboards{s} }

type Dashboards struct{ s *Store }

func (d *Dashboards) Admin(ctx context.Context, now time.Time) (model.AdminDashboard, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	month := model.MonthStart(now)
	var out model.AdminDashboard
	for _, u := range s.users {
		if u.Role == model.RoleMember {
			out.TotalMembers++
		}
	}
	var cents int
	for _, ms := range s.memberships {
		if ms.AsOf(now).Status == model.MembershipActive {
			out.ActiveMemberships++
		}
		if !ms.CreatedAt.Before(month) {
			cents += s.plans[ms.PlanID].Price
		}
	}
	out.MonthlyRevenue = float64(cents) / 100
	out.TotalTrainers = len(s.trainers)
	horizon := now.Add(model.UpcomingWindow)
	for _, cl := range s.classes {
		if !cl.StartTime.Before(now) && !cl.StartTime.After(horizon) {
			out.UpcomingClasses++
		}
	}
	for _, b := range s.tables.bookings {
		if b.Status == model.StatusConfirmed && !b.CreatedAt.Before(month) {
			out.MonthlyBookings++
		}
	}
	out.RecentBookingsCount = min(len(s.tables.bookings), model.RecentBookingsLimit)
	return out, nil
}

func (d *Dashboards) Member(ctx context.Context, memberID uint64, now time.Time) (model.MemberDashboard, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	out := model.MemberDashboard{UpcomingClasses: make([]model.UpcomingBooking, 0)}

	var current *model.Membership
	for _, ms := range s.memberships {
		if ms.MemberID != memberID || ms.AsOf(now).Status != model.MembershipActive {
			continue
		}
		if current == nil || ms.EndDate.After(current.EndDate) ||
			(ms.EndDate.Equal(current.EndDate) && ms.ID > current.ID) {
			ms := ms
			current = &ms
		}
	}
	if current != nil {
		out.Membership = &model.MembershipSummary{
			PlanName:      s.plans[current.PlanID].Name,
			StartDate:     current.StartDate,
			EndDate:       current.EndDate,
			Status:        current.Status,
			DaysRemaining: model.DaysRemaining(now, current.EndDate),
		}
	}

	type upcoming struct {
		model.UpcomingBooking
		id uint64
	}
	var next []upcoming
	for _, b := range s.tables.bookings {
		if b.MemberID != memberID || b.Status != model.StatusConfirmed {
			continue
		}
		out.TotalBookings++
		cl, ok := s.classes[b.ClassID]
		if !ok || cl.StartTime.Before(now) {
			continue
		}
		next = append(next, upcoming{model.UpcomingBooking{
			BookingID: b.ID, ClassTitle: cl.Title, StartTime: cl.StartTime, Room: cl.Room,
		}, b.ID})
	}
	for bid, a := range s.tables.attendance {
		if b, ok := s.tables.bookings[bid]; ok && a.Attended && b.MemberID == memberID {
			out.AttendedClasses++
		}
	}
	sort.Slice(next, func(i, j int) bool {
		if !next[i].StartTime.Equal(next[j].StartTime) {
			return next[i].StartTime.Before(next[j].StartTime)
		}
		return next[i].id < next[j].id
	})
	for i := 0; i < len(next) && i < model.MemberUpcomingLimit; i++ {
		out.UpcomingClasses = append(out.UpcomingClasses, next[i].UpcomingBooking)
	}
	return out, nil
}

func (d *Dashboards) Trainer(ctx context.Context, userID uint64, now time.Time) (model.TrainerDashboard, error) {
	s := d.s
	s.mu.Lock()
	defer s.mu.Unlock()
	now = now.UTC()
	profile, ok := s.trainerByUser(userID)
	if !ok {
		return model.TrainerDashboard{}, repository.ErrNotFound
	}
	out := model.TrainerDashboard{
		TrainerName:     s.users[userID].FullName,
		Specialties:     profile.Specialties,
		UpcomingClasses: make([]model.TrainerClass, 0),
	}
	var next []model.TrainerClass
	for _, cl := range s.classes {
		if cl.TrainerID != userID {
			continue
		}
		out.TotalClasses++
		booked := s.tables.confirmed(cl.ID)
		out.TotalBookings += booked
		if cl.StartTime.Before(now) {
			continue
		}
		next = append(next, model.TrainerClass{
			ClassID: cl.ID, Title: cl.Title, StartTime: cl.StartTime, EndTime: cl.EndTime,
			Room: cl.Room, Booked: booked, Capacity: cl.Capacity,
		})
	}
	sort.Slice(next, func(i, j int) bool {
		if !next[i].StartTime.Equal(next[j].StartTime) {
			return next[i].StartTime.Before(next[j].StartTime)
		}
		return next[i].ClassID < next[j].ClassID
	})
	for i := 0; i < len(next) && i < model.TrainerUpcomingLimit; i++ {
		out.UpcomingClasses = append(out.UpcomingClasses, next[i])
	}
	return out, nil
}
