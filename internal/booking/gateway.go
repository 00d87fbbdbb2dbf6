package booking

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/gym-backend/internal/model"
)

// Errors a Gateway reports, possibly joined with the driver error.
var (
	// ErrNoRecord is returned by lookups of absent rows.
	ErrNoRecord = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrTxConflict marks a deadlock or lock wait timeout.  The whole
	// transaction may be retried.
	ErrTxConflict = errors.New("transaction conflict")
)

// Gateway is the persistence the engine depends on.
type Gateway interface {
	// WithinTx runs fn in one transaction and commits when fn returns
	// nil.  The Tx handle is only valid inside fn.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ListBookings returns bookings ordered by created_at, id.  A nil
	// memberID lists every booking.
	ListBookings(ctx context.Context, memberID *uint64) ([]model.Booking, error)
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	GetAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error)
}

// Tx is a transaction-scoped handle.  GetClassForUpdate takes the
// per-class lock that serializes every booking write for that class.
type Tx interface {
	GetClassForUpdate(ctx context.Context, classID uint64) (model.ClassSchedule, error)
	CountConfirmed(ctx context.Context, classID uint64) (int, error)
	FindActiveBooking(ctx context.Context, memberID, classID uint64) (model.Booking, error)
	FindOldestWaitlisted(ctx context.Context, classID uint64) (model.Booking, error)
	// LatestBookingCreatedAt returns the newest created_at among the
	// class's bookings, or ErrNoRecord when it has none.
	LatestBookingCreatedAt(ctx context.Context, classID uint64) (time.Time, error)
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	InsertBooking(ctx context.Context, b *model.Booking) error
	UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus) error
	InsertAttendance(ctx context.Context, a *model.Attendance) error
	FindAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error)
}
