package model

import "time"

const (
	// UpcomingWindow is how far ahead the admin dashboard counts classes.
	UpcomingWindow = 7 * 24 * time.Hour
	// RecentBookingsLimit caps the admin dashboard's recent bookings.
	RecentBookingsLimit = 10
	// MemberUpcomingLimit caps the member dashboard's upcoming classes.
	MemberUpcomingLimit = 5
	// TrainerUpcomingLimit caps the trainer dashboard's upcoming classes.
	TrainerUpcomingLimit = 10
)

// MonthStart is midnight UTC on the first day of now's month.
func MonthStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DaysRemaining counts whole days from now until end, never negative.
func DaysRemaining(now, end time.Time) int {
	if !end.After(now) {
		return 0
	}
	return int(end.Sub(now) / (24 * time.Hour))
}

// AdminDashboard is the system-wide summary shown to admins.
// MonthlyRevenue is in currency units (cents / 100).
type AdminDashboard struct {
	TotalMembers        int     `json:"total_members"`
	ActiveMemberships   int     `json:"active_memberships"`
	TotalTrainers       int     `json:"total_trainers"`
	UpcomingClasses     int     `json:"upcoming_classes"`
	MonthlyBookings     int     `json:"monthly_bookings"`
	MonthlyRevenue      float64 `json:"monthly_revenue"`
	RecentBookingsCount int     `json:"recent_bookings_count"`
}

// MembershipSummary describes a member's current membership.
type MembershipSummary struct {
	PlanName      string           `json:"plan_name"`
	StartDate     time.Time        `json:"start_date"`
	EndDate       time.Time        `json:"end_date"`
	Status        MembershipStatus `json:"status"`
	DaysRemaining int              `json:"days_remaining"`
}

// UpcomingBooking is one confirmed booking for a class yet to start.
type UpcomingBooking struct {
	BookingID  uint64    `json:"booking_id"`
	ClassTitle string    `json:"class_title"`
	StartTime  time.Time `json:"start_time"`
	Room       *string   `json:"room"`
}

// MemberDashboard is the personal summary shown to any signed-in user.
type MemberDashboard struct {
	Membership      *MembershipSummary `json:"membership"`
	UpcomingClasses []UpcomingBooking  `json:"upcoming_classes"`
	TotalBookings   int                `json:"total_bookings"`
	AttendedClasses int                `json:"attended_classes"`
}

// TrainerClass is one upcoming class on a trainer's schedule.
type TrainerClass struct {
	ClassID   uint64    `json:"class_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Room      *string   `json:"room"`
	Booked    int       `json:"booked"`
	Capacity  int       `json:"capacity"`
}

// TrainerDashboard is the schedule summary shown to trainers.
type TrainerDashboard struct {
	TrainerName     string         `json:"trainer_name"`
	Specialties     *string        `json:"specialties"`
	UpcomingClasses []TrainerClass `json:"upcoming_classes"`
	TotalClasses    int            `json:"total_classes"`
	TotalBookings   int            `json:"total_bookings"`
}
