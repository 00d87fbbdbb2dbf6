// Package booking owns the booking lifecycle: capacity-bounded creation,
// cancellation with FIFO waitlist promotion, and attendance recording.
//
// Every state-changing operation runs as one transaction that first
// locks the class row, so the confirmed-count read and the write that
// depends on it are never interleaved with another writer on the same
// class.  Transient transaction failures are retried a bounded number
// of times and then reported as ErrConflict.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/queue"
)

const (
	// DefaultMaxAttempts is how many times a transaction is tried before a
	// transient failure is reported as ErrConflict.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the base delay between attempts; attempt n waits
	// n times this.
	DefaultBackoff = 20 * time.Millisecond
)

// Logger is the subset of the echo/gommon logger the engine writes to.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}

// Engine applies booking transitions through a Gateway.  It keeps no
// persistence state between calls and is safe for concurrent use.
type Engine struct {
	gw          Gateway
	events      queue.Sink
	log         Logger
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

type Option func(*Engine)

// WithEvents sets the sink that receives committed transitions.
func WithEvents(s queue.Sink) Option { return func(e *Engine) { e.events = s } }

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option { return func(e *Engine) { e.log = l } }

// WithRetry bounds how many times a transaction is attempted and the
// base delay between attempts (the n-th retry waits n*backoff).
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			e.backoff = backoff
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// New returns an Engine backed by gw.
func New(gw Gateway, opts ...Option) *Engine {
	if gw == nil {
		panic("nil gateway passed to booking.New")
	}
	e := &Engine{
		gw:          gw,
		events:      queue.NopSink{},
		log:         nopLogger{},
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// CreateBooking books memberID into classID.  The booking is confirmed
// while the class has fewer confirmed bookings than its capacity and
// waitlisted otherwise.
func (e *Engine) CreateBooking(ctx context.Context, memberID, classID uint64) (model.Booking, error) {
	if memberID == 0 || classID == 0 {
		return model.Booking{}, fmt.Errorf("%w: member and class are required", ErrInvalidInput)
	}
	var created model.Booking
	err := e.inTx(ctx, "create booking", func(ctx context.Context, tx Tx) error {
		class, err := tx.GetClassForUpdate(ctx, classID)
		if err != nil {
			return notFound(err, "class not found")
		}
		if _, err := tx.FindActiveBooking(ctx, memberID, classID); err == nil {
			return fmt.Errorf("%w: member already has an active booking for this class", ErrConflict)
		} else if !errors.Is(err, ErrNoRecord) {
			return err
		}
		confirmed, err := tx.CountConfirmed(ctx, classID)
		if err != nil {
			return err
		}
		createdAt, err := e.createdAt(ctx, tx, classID)
		if err != nil {
			return err
		}
		b := model.Booking{
			MemberID:  memberID,
			ClassID:   classID,
			Status:    model.StatusWaitlisted,
			CreatedAt: createdAt,
		}
		if confirmed < class.Capacity {
			b.Status = model.StatusConfirmed
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return fmt.Errorf("%w: member already has an active booking for this class", ErrConflict)
			}
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	e.log.Infof("booking %d created: member=%d class=%d status=%s", created.ID, memberID, classID, created.Status)
	typ := queue.EventBookingConfirmed
	if created.Status == model.StatusWaitlisted {
		typ = queue.EventBookingWaitlisted
	}
	e.emit(ctx, queue.NewBookingEvent(typ, created, e.now()))
	return created, nil
}

// CancelBooking cancels bookingID on behalf of actor.  When the booking
// was confirmed, waitlisted bookings of the same class are promoted
// oldest first in the same transaction until the class is full again.
func (e *Engine) CancelBooking(ctx context.Context, bookingID uint64, actor model.Principal) (model.Booking, error) {
	if bookingID == 0 {
		return model.Booking{}, fmt.Errorf("%w: booking id is required", ErrInvalidInput)
	}
	var cancelled model.Booking
	var promoted []model.Booking
	err := e.inTx(ctx, "cancel booking", func(ctx context.Context, tx Tx) error {
		promoted = nil
		// class_id never changes, so an unlocked read is enough to find
		// which class lock to take.  Locks are always class then booking.
		cur, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		if !actor.CanAccess(cur.MemberID) {
			return fmt.Errorf("%w: not enough permissions", ErrForbidden)
		}
		class, err := tx.GetClassForUpdate(ctx, cur.ClassID)
		if err != nil {
			return notFound(err, "class not found")
		}
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		if b.Status == model.StatusCancelled {
			return fmt.Errorf("%w: booking is already cancelled", ErrConflict)
		}
		wasConfirmed := b.Status == model.StatusConfirmed
		if err := tx.UpdateBookingStatus(ctx, b.ID, model.StatusCancelled); err != nil {
			return err
		}
		b.Status = model.StatusCancelled
		cancelled = b
		if !wasConfirmed {
			return nil
		}
		promoted, err = promoteWaitlisted(ctx, tx, class)
		return err
	})
	if err != nil {
		return model.Booking{}, err
	}
	e.log.Infof("booking %d cancelled by %s %d", cancelled.ID, actor.Role, actor.ID)
	e.emit(ctx, queue.NewBookingEvent(queue.EventBookingCancelled, cancelled, e.now()))
	e.emitPromoted(ctx, promoted)
	return cancelled, nil
}

// FillClass promotes waitlisted bookings of classID, oldest first, into
// any free places.  It is run after a class's capacity is raised and
// returns the promoted bookings.
func (e *Engine) FillClass(ctx context.Context, classID uint64) ([]model.Booking, error) {
	if classID == 0 {
		return nil, fmt.Errorf("%w: class id is required", ErrInvalidInput)
	}
	var promoted []model.Booking
	err := e.inTx(ctx, "fill class", func(ctx context.Context, tx Tx) error {
		class, err := tx.GetClassForUpdate(ctx, classID)
		if err != nil {
			return notFound(err, "class not found")
		}
		promoted, err = promoteWaitlisted(ctx, tx, class)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.emitPromoted(ctx, promoted)
	return promoted, nil
}

// promoteWaitlisted confirms waitlisted bookings in FIFO order while the
// class has free places.  The caller holds the class lock.  A class
// whose capacity was lowered below occupancy promotes nobody.
func promoteWaitlisted(ctx context.Context, tx Tx, class model.ClassSchedule) ([]model.Booking, error) {
	confirmed, err := tx.CountConfirmed(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	var out []model.Booking
	for ; confirmed < class.Capacity; confirmed++ {
		next, err := tx.FindOldestWaitlisted(ctx, class.ID)
		if errors.Is(err, ErrNoRecord) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := tx.UpdateBookingStatus(ctx, next.ID, model.StatusConfirmed); err != nil {
			return nil, err
		}
		next.Status = model.StatusConfirmed
		out = append(out, next)
	}
	return out, nil
}

// createdAt is the engine clock truncated to the column precision and
// never earlier than the newest booking of the class, so FIFO order
// survives a clock stepping backwards.  The caller holds the class lock.
func (e *Engine) createdAt(ctx context.Context, tx Tx, classID uint64) (time.Time, error) {
	now := e.now().UTC().Truncate(time.Microsecond)
	latest, err := tx.LatestBookingCreatedAt(ctx, classID)
	if errors.Is(err, ErrNoRecord) {
		return now, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	if latest = latest.UTC(); now.Before(latest) {
		return latest, nil
	}
	return now, nil
}

// GetBooking returns bookingID if actor is an admin or its owner.
func (e *Engine) GetBooking(ctx context.Context, bookingID uint64, actor model.Principal) (model.Booking, error) {
	b, err := e.gw.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, notFound(err, "booking not found")
	}
	if !actor.CanAccess(b.MemberID) {
		return model.Booking{}, fmt.Errorf("%w: not enough permissions", ErrForbidden)
	}
	return b, nil
}

// ListBookings returns every booking to admins and only their own to
// everyone else.
func (e *Engine) ListBookings(ctx context.Context, actor model.Principal) ([]model.Booking, error) {
	if actor.IsAdmin() {
		return e.gw.ListBookings(ctx, nil)
	}
	id := actor.ID
	return e.gw.ListBookings(ctx, &id)
}

// MarkAttendance records the single attendance entry for bookingID.
// The booking status is not consulted.
func (e *Engine) MarkAttendance(ctx context.Context, bookingID uint64, attended bool, notes *string, actor model.Principal) (model.Attendance, error) {
	if !actor.IsAdmin() {
		return model.Attendance{}, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	if bookingID == 0 {
		return model.Attendance{}, fmt.Errorf("%w: booking id is required", ErrInvalidInput)
	}
	var rec model.Attendance
	var booked model.Booking
	err := e.inTx(ctx, "mark attendance", func(ctx context.Context, tx Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking not found")
		}
		if _, err := tx.FindAttendanceByBooking(ctx, bookingID); err == nil {
			return fmt.Errorf("%w: attendance already recorded for this booking", ErrConflict)
		} else if !errors.Is(err, ErrNoRecord) {
			return err
		}
		a := model.Attendance{
			BookingID: bookingID,
			Attended:  attended,
			Notes:     notes,
			CreatedAt: e.now().UTC().Truncate(time.Microsecond),
		}
		if err := tx.InsertAttendance(ctx, &a); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return fmt.Errorf("%w: attendance already recorded for this booking", ErrConflict)
			}
			return err
		}
		rec, booked = a, b
		return nil
	})
	if err != nil {
		return model.Attendance{}, err
	}
	e.log.Infof("attendance %d recorded for booking %d: attended=%t", rec.ID, bookingID, attended)
	ev := queue.NewBookingEvent(queue.EventAttendanceRecorded, booked, e.now())
	ev.Attended = &attended
	e.emit(ctx, ev)
	return rec, nil
}

// GetAttendance returns the attendance record of bookingID to an admin
// or to the booking owner.
func (e *Engine) GetAttendance(ctx context.Context, bookingID uint64, actor model.Principal) (model.Attendance, error) {
	if _, err := e.GetBooking(ctx, bookingID, actor); err != nil {
		return model.Attendance{}, err
	}
	a, err := e.gw.GetAttendanceByBooking(ctx, bookingID)
	if err != nil {
		return model.Attendance{}, notFound(err, "attendance not recorded")
	}
	return a, nil
}

// inTx runs fn in a gateway transaction, retrying transient conflicts.
func (e *Engine) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = e.gw.WithinTx(ctx, fn)
		if !errors.Is(err, ErrTxConflict) {
			return err
		}
		e.log.Warnf("%s: transient conflict on attempt %d/%d: %v", op, attempt, e.maxAttempts, err)
		if attempt == e.maxAttempts {
			break
		}
		if e.backoff > 0 {
			t := time.NewTimer(time.Duration(attempt) * e.backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return fmt.Errorf("%w: %s could not commit after %d attempts", ErrConflict, op, e.maxAttempts)
}

func (e *Engine) emitPromoted(ctx context.Context, promoted []model.Booking) {
	for _, b := range promoted {
		e.log.Infof("booking %d promoted from waitlist: class=%d", b.ID, b.ClassID)
		e.emit(ctx, queue.NewBookingEvent(queue.EventBookingPromoted, b, e.now()))
	}
}

func (e *Engine) emit(ctx context.Context, ev queue.BookingEvent) {
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warnf("publish %s for booking %d failed: %v", ev.Type, ev.BookingID, err)
	}
}

// notFound converts ErrNoRecord into ErrNotFound with msg and
// passes other errors through.
func notFound(err error, msg string) error {
	if errors.Is(err, ErrNoRecord) {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return err
}
