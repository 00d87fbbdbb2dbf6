package model

import (
	"encoding/json"
	"time"
)

// BookingStatus is the lifecycle state of a booking.  The string values
// are what is persisted and serialized.
type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "confirmed"
	StatusWaitlisted BookingStatus = "waitlisted"
	StatusCancelled  BookingStatus = "cancelled"
)

// Active reports whether the booking still holds (or waits for) a place.
func (s BookingStatus) Active() bool {
	return s == StatusConfirmed || s == StatusWaitlisted
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusWaitlisted, StatusCancelled:
		return true
	}
	return false
}

// Booking records a member's place (or waitlist entry) in a class.
//
// Fields:
//
//	ID        – primary key identifier; also the FIFO tie-break.
//	MemberID  – user who owns the booking.
//	ClassID   – class being booked.
//	Status    – confirmed, waitlisted or cancelled.
//	CreatedAt – creation timestamp (UTC, microsecond precision).
type Booking struct {
	ID        uint64        `json:"id"`
	MemberID  uint64        `json:"member_id"`
	ClassID   uint64        `json:"class_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// MarshalJSON renders CreatedAt as RFC 3339 in UTC so timestamps sort
// lexically and carry no zone ambiguity.
func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	return json.Marshal(struct {
		alias
		CreatedAt string `json:"created_at"`
	}{alias: alias(b), CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339Nano)})
}

// WaitlistedBefore orders waitlisted bookings for promotion: earliest
// creation first, then lowest id.
func (b Booking) WaitlistedBefore(o Booking) bool {
	if !b.CreatedAt.Equal(o.CreatedAt) {
		return b.CreatedAt.Before(o.CreatedAt)
	}
	return b.ID < o.ID
}
