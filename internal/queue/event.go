// Package queue defines booking event payloads and moves them over the
// message broker.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/gym-backend/internal/model"
)

// Event types emitted after a booking transition commits.
const (
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingWaitlisted  = "booking.waitlisted"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingPromoted    = "booking.promoted"
	EventAttendanceRecorded = "attendance.recorded"
)

// BookingEvent is published when a booking changes state or attendance
// is recorded.  It carries enough for downstream consumers to log or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	BookingID  uint64              `json:"booking_id"`
	MemberID   uint64              `json:"member_id"`
	ClassID    uint64              `json:"class_id"`
	Status     model.BookingStatus `json:"status"`
	Attended   *bool               `json:"attended,omitempty"`
	OccurredAt string              `json:"occurred_at"`
}

// NewBookingEvent builds an event for b stamped with a fresh id.
func NewBookingEvent(typ string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		BookingID:  b.ID,
		MemberID:   b.MemberID,
		ClassID:    b.ClassID,
		Status:     b.Status,
		OccurredAt: at.UTC().Format(time.RFC3339Nano),
	}
}

// Sink accepts events.  Implementations must not block the caller for
// long; failures are reported but never undo the committed transition.
type Sink interface {
	Publish(ctx context.Context, ev BookingEvent) error
}

// NopSink drops every event.  It is used when the broker is disabled.
type NopSink struct{}

func (NopSink) Publish(context.Context, BookingEvent) error { return nil }
