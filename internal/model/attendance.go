package model

import "time"

// Attendance is the single attendance record an admin may create for a
// booking.  It is metadata and does not change the booking status.
type Attendance struct {
	ID        uint64    `json:"id"`
	BookingID uint64    `json:"booking_id"`
	Attended  bool      `json:"attended"`
	Notes     *string   `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}
