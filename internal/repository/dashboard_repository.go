package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/gym-backend/internal/model"
)

// DashboardRepo computes the read-only dashboard aggregates.  Every
// method takes now so the time windows are decided by the caller.
type DashboardRepo struct {
	db *sql.DB
}

// NewDashboardRepo constructs a DashboardRepo with the given DB handle.
func NewDashboardRepo(db *sql.DB) *DashboardRepo {
	return &DashboardRepo{db: db}
}

const adminStatsQuery = `SELECT
	(SELECT COUNT(*) FROM users WHERE role = 'member'),
	(SELECT COUNT(*) FROM memberships WHERE status = 'active' AND end_date > ?),
	(SELECT COUNT(*) FROM trainers),
	(SELECT COUNT(*) FROM class_schedules WHERE start_time >= ? AND start_time <= ?),
	(SELECT COUNT(*) FROM bookings WHERE status = 'confirmed' AND created_at >= ?),
	(SELECT COALESCE(SUM(p.price), 0) FROM memberships m JOIN membership_plans p ON p.id = m.plan_id WHERE m.created_at >= ?),
	(SELECT LEAST(COUNT(*), ?) FROM bookings)`

// Admin returns the system-wide counters.  Revenue sums the plan price
// of every membership sold since the start of the month.
func (r *DashboardRepo) Admin(ctx context.Context, now time.Time) (model.AdminDashboard, error) {
	now = now.UTC()
	month := model.MonthStart(now)
	var d model.AdminDashboard
	var cents int64
	err := r.db.QueryRowContext(ctx, adminStatsQuery,
		now, now, now.Add(model.UpcomingWindow), month, month, model.RecentBookingsLimit,
	).Scan(&d.TotalMembers, &d.ActiveMemberships, &d.TotalTrainers, &d.UpcomingClasses,
		&d.MonthlyBookings, &cents, &d.RecentBookingsCount)
	if err != nil {
		return model.AdminDashboard{}, err
	}
	d.MonthlyRevenue = float64(cents) / 100
	return d, nil
}

// Member returns the personal summary of memberID.
func (r *DashboardRepo) Member(ctx context.Context, memberID uint64, now time.Time) (model.MemberDashboard, error) {
	now = now.UTC()
	d := model.MemberDashboard{UpcomingClasses: make([]model.UpcomingBooking, 0)}

	var ms model.MembershipSummary
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT p.name, m.start_date, m.end_date, m.status
		FROM memberships m JOIN membership_plans p ON p.id = m.plan_id
		WHERE m.member_id = ? AND m.status = 'active' AND m.end_date > ?
		ORDER BY m.end_date DESC, m.id DESC LIMIT 1`, memberID, now,
	).Scan(&ms.PlanName, &ms.StartDate, &ms.EndDate, &status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return model.MemberDashboard{}, err
	default:
		ms.Status = model.MembershipStatus(status)
		ms.StartDate, ms.EndDate = ms.StartDate.UTC(), ms.EndDate.UTC()
		ms.DaysRemaining = model.DaysRemaining(now, ms.EndDate)
		d.Membership = &ms
	}

	rows, err := r.db.QueryContext(ctx, `SELECT b.id, c.title, c.start_time, c.room
		FROM bookings b JOIN class_schedules c ON c.id = b.class_id
		WHERE b.member_id = ? AND b.status = 'confirmed' AND c.start_time >= ?
		ORDER BY c.start_time, b.id LIMIT ?`, memberID, now, model.MemberUpcomingLimit)
	if err != nil {
		return model.MemberDashboard{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var u model.UpcomingBooking
		var room sql.NullString
		if err := rows.Scan(&u.BookingID, &u.ClassTitle, &u.StartTime, &room); err != nil {
			return model.MemberDashboard{}, err
		}
		u.StartTime, u.Room = u.StartTime.UTC(), nullString(room)
		d.UpcomingClasses = append(d.UpcomingClasses, u)
	}
	if err := rows.Err(); err != nil {
		return model.MemberDashboard{}, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM bookings WHERE member_id = ? AND status = 'confirmed'),
		(SELECT COUNT(*) FROM attendance a JOIN bookings b ON b.id = a.booking_id WHERE b.member_id = ? AND a.attended)`,
		memberID, memberID,
	).Scan(&d.TotalBookings, &d.AttendedClasses)
	if err != nil {
		return model.MemberDashboard{}, err
	}
	return d, nil
}

// Trainer returns the schedule summary of the trainer with userID.  It
// returns ErrNotFound when the user has no trainer profile.
func (r *DashboardRepo) Trainer(ctx context.Context, userID uint64, now time.Time) (model.TrainerDashboard, error) {
	now = now.UTC()
	d := model.TrainerDashboard{UpcomingClasses: make([]model.TrainerClass, 0)}

	var specialties sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT u.full_name, t.specialties
		FROM trainers t JOIN users u ON u.id = t.user_id WHERE t.user_id = ?`, userID,
	).Scan(&d.TrainerName, &specialties)
	if err != nil {
		return model.TrainerDashboard{}, classify(err)
	}
	d.Specialties = nullString(specialties)

	rows, err := r.db.QueryContext(ctx, `SELECT c.id, c.title, c.start_time, c.end_time, c.room, c.capacity,
		(SELECT COUNT(*) FROM bookings b WHERE b.class_id = c.id AND b.status = 'confirmed')
		FROM class_schedules c
		WHERE c.trainer_id = ? AND c.start_time >= ?
		ORDER BY c.start_time, c.id LIMIT ?`, userID, now, model.TrainerUpcomingLimit)
	if err != nil {
		return model.TrainerDashboard{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tc model.TrainerClass
		var room sql.NullString
		if err := rows.Scan(&tc.ClassID, &tc.Title, &tc.StartTime, &tc.EndTime, &room, &tc.Capacity, &tc.Booked); err != nil {
			return model.TrainerDashboard{}, err
		}
		tc.StartTime, tc.EndTime, tc.Room = tc.StartTime.UTC(), tc.EndTime.UTC(), nullString(room)
		d.UpcomingClasses = append(d.UpcomingClasses, tc)
	}
	if err := rows.Err(); err != nil {
		return model.TrainerDashboard{}, err
	}

	err = r.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM class_schedules WHERE trainer_id = ?),
		(SELECT COUNT(*) FROM bookings b JOIN class_schedules c ON c.id = b.class_id WHERE c.trainer_id = ? AND b.status = 'confirmed')`,
		userID, userID,
	).Scan(&d.TotalClasses, &d.TotalBookings)
	if err != nil {
		return model.TrainerDashboard{}, err
	}
	return d, nil
}
