package model

import "time"

// MembershipStatus is the lifecycle state of a member's membership.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "active"
	MembershipExpired   MembershipStatus = "expired"
	MembershipCancelled MembershipStatus = "cancelled"
)

// MembershipPlan is a purchasable plan.  Price is in cents.
type MembershipPlan struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Description  *string   `json:"description"`
	DurationDays int       `json:"duration_days"`
	Price        int       `json:"price"`
	Features     *string   `json:"features"`
	CreatedAt    time.Time `json:"created_at"`
}

// Membership ties a member to a plan for [StartDate, EndDate).
type Membership struct {
	ID        uint64           `json:"id"`
	MemberID  uint64           `json:"member_id"`
	PlanID    uint64           `json:"plan_id"`
	StartDate time.Time        `json:"start_date"`
	EndDate   time.Time        `json:"end_date"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// AsOf reports the membership as seen at now: an active membership
// whose end date has passed reads as expired.  Nothing is written back.
func (m Membership) AsOf(now time.Time) Membership {
	if m.Status == MembershipActive && !now.Before(m.EndDate) {
		m.Status = MembershipExpired
	}
	return m
}
