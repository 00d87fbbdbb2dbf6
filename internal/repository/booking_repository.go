package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/model"
)

// BookingRepo implements booking.Gateway on MySQL.  Each WithinTx call
// opens a READ COMMITTED transaction so that reads taken after the
// class row lock see every booking committed by the previous lock
// holder.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

var _ booking.Gateway = (*BookingRepo)(nil)

const bookingColumns = "id, member_id, class_id, status, created_at"

// WithinTx runs fn inside a transaction.  The transaction is committed
// only when fn returns nil; driver errors are classified so deadlocks
// surface as ErrTxConflict.
func (r *BookingRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &bookingTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	committed = true
	return nil
}

// ListBookings returns bookings ordered by created_at, id.  A nil
// memberID lists all bookings.
func (r *BookingRepo) ListBookings(ctx context.Context, memberID *uint64) ([]model.Booking, error) {
	q := "SELECT " + bookingColumns + " FROM bookings"
	var args []interface{}
	if memberID != nil {
		q += " WHERE member_id = ?"
		args = append(args, *memberID)
	}
	q += " ORDER BY created_at, id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetBooking fetches a booking outside any transaction.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	return b, classify(err)
}

// GetAttendanceByBooking fetches the attendance record of a booking.
func (r *BookingRepo) GetAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error) {
	a, err := scanAttendance(r.db.QueryRowContext(ctx, attendanceSelect, bookingID))
	return a, classify(err)
}

// bookingTx is the transaction-scoped half of BookingRepo.
type bookingTx struct {
	tx *sql.Tx
}

const attendanceSelect = `SELECT id, booking_id, attended, notes, created_at FROM attendance WHERE booking_id = ?`

func (t *bookingTx) GetClassForUpdate(ctx context.Context, classID uint64) (model.ClassSchedule, error) {
	const q = `SELECT id, title, description, trainer_id, room, capacity, start_time, end_time, created_at
	           FROM class_schedules WHERE id = ? FOR UPDATE`
	var c model.ClassSchedule
	var desc, room sql.NullString
	err := t.tx.QueryRowContext(ctx, q, classID).Scan(&c.ID, &c.Title, &desc, &c.TrainerID, &room,
		&c.Capacity, &c.StartTime, &c.EndTime, &c.CreatedAt)
	if err != nil {
		return model.ClassSchedule{}, classify(err)
	}
	if desc.Valid {
		d := desc.String
		c.Description = &d
	}
	if room.Valid {
		rm := room.String
		c.Room = &rm
	}
	return c, nil
}

func (t *bookingTx) CountConfirmed(ctx context.Context, classID uint64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE class_id = ? AND status = ?`,
		classID, string(model.StatusConfirmed)).Scan(&n)
	return n, classify(err)
}

func (t *bookingTx) FindActiveBooking(ctx context.Context, memberID, classID uint64) (model.Booking, error) {
	q := "SELECT " + bookingColumns + ` FROM bookings
	      WHERE member_id = ? AND class_id = ? AND status IN (?, ?) LIMIT 1`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, memberID, classID,
		string(model.StatusConfirmed), string(model.StatusWaitlisted)))
	return b, classify(err)
}

func (t *bookingTx) FindOldestWaitlisted(ctx context.Context, classID uint64) (model.Booking, error) {
	q := "SELECT " + bookingColumns + ` FROM bookings
	      WHERE class_id = ? AND status = ?
	      ORDER BY created_at, id LIMIT 1 FOR UPDATE`
	b, err := scanBooking(t.tx.QueryRowContext(ctx, q, classID, string(model.StatusWaitlisted)))
	return b, classify(err)
}

func (t *bookingTx) LatestBookingCreatedAt(ctx context.Context, classID uint64) (time.Time, error) {
	var latest sql.NullTime
	err := t.tx.QueryRowContext(ctx, `SELECT MAX(created_at) FROM bookings WHERE class_id = ?`, classID).Scan(&latest)
	if err != nil {
		return time.Time{}, classify(err)
	}
	if !latest.Valid {
		return time.Time{}, ErrNotFound
	}
	return latest.Time.UTC(), nil
}

func (t *bookingTx) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ?", id))
	return b, classify(err)
}

func (t *bookingTx) GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = ? FOR UPDATE", id))
	return b, classify(err)
}

// InsertBooking inserts b and assigns the generated id.  CreatedAt is
// written explicitly so FIFO order follows the engine clock.
func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings (member_id, class_id, status, created_at) VALUES (?, ?, ?, ?)`,
		b.MemberID, b.ClassID, string(b.Status), b.CreatedAt.UTC())
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func (t *bookingTx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid booking status %q", status)
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *bookingTx) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO attendance (booking_id, attended, notes, created_at) VALUES (?, ?, ?, ?)`,
		a.BookingID, a.Attended, a.Notes, a.CreatedAt.UTC())
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

func (t *bookingTx) FindAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error) {
	a, err := scanAttendance(t.tx.QueryRowContext(ctx, attendanceSelect+" FOR UPDATE", bookingID))
	return a, classify(err)
}

func scanBooking(s rowScanner) (model.Booking, error) {
	var b model.Booking
	var status string
	if err := s.Scan(&b.ID, &b.MemberID, &b.ClassID, &status, &b.CreatedAt); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func scanAttendance(s rowScanner) (model.Attendance, error) {
	var a model.Attendance
	var notes sql.NullString
	if err := s.Scan(&a.ID, &a.BookingID, &a.Attended, &notes, &a.CreatedAt); err != nil {
		return model.Attendance{}, err
	}
	if notes.Valid {
		n := notes.String
		a.Notes = &n
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
