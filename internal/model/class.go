package model

import "time"

// ClassSchedule represents a scheduled fitness class.  Capacity bounds
// the number of confirmed bookings; bookings beyond it are
// waitlisted.
//
// Fields:
//
//	ID          – primary key identifier.
//	Title       – class name.
//	Description – optional free text.
//	TrainerID   – user id of the trainer running the class.
//	Room        – optional room or location.
//	Capacity    – maximum confirmed bookings (> 0).
//	StartTime   – when the class begins (UTC).
//	EndTime     – when the class ends (must be after StartTime).
//	CreatedAt   – creation timestamp.
type ClassSchedule struct {
	ID          uint64    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	TrainerID   uint64    `json:"trainer_id"`
	Room        *string   `json:"room"`
	Capacity    int       `json:"capacity"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClassWithCount decorates a class with its current occupancy.
type ClassWithCount struct {
	ClassSchedule
	BookedCount int `json:"booked_count"`
}
