package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/model"
)

var (
	classCols   = []string{"id", "title", "description", "trainer_id", "room", "capacity", "start_time", "end_time", "created_at"}
	bookingCols = []string{"id", "member_id", "class_id", "status", "created_at"}
	t0          = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
)

func classRow(id uint64, capacity int) *sqlmock.Rows {
	return sqlmock.NewRows(classCols).
		AddRow(id, "Spin", nil, 2, "Studio A", capacity, t0.Add(time.Hour), t0.Add(2*time.Hour), t0)
}

func newMock(t *testing.T) (*BookingRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBookingRepo(db), mock
}

func expectCreate(mock sqlmock.Sqlmock, confirmed int) {
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM class_schedules WHERE id = \? FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(classRow(5, 2))
	mock.ExpectQuery(`FROM bookings\s+WHERE member_id = \? AND class_id = \? AND status IN`).
		WithArgs(10, 5, "confirmed", "waitlisted").
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE class_id = \? AND status = \?`).
		WithArgs(5, "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(confirmed))
	mock.ExpectQuery(`SELECT MAX\(created_at\) FROM bookings WHERE class_id = \?`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"latest"}).AddRow(nil))
}

func TestBookingRepoCreateCommits(t *testing.T) {
	repo, mock := newMock(t)
	expectCreate(mock, 1)
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(10, 5, "confirmed", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	e := booking.New(repo, booking.WithRetry(1, 0), booking.WithClock(func() time.Time { return t0 }))
	b, err := e.CreateBooking(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.ID)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoCreatedAtNeverPrecedesNewestBooking(t *testing.T) {
	repo, mock := newMock(t)
	newest := t0.Add(time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM class_schedules WHERE id = \? FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(classRow(5, 2))
	mock.ExpectQuery(`FROM bookings\s+WHERE member_id = \? AND class_id = \? AND status IN`).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings WHERE class_id = \? AND status = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery(`SELECT MAX\(created_at\) FROM bookings WHERE class_id = \?`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"latest"}).AddRow(newest))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(10, 5, "confirmed", newest).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	// the clock reads an hour earlier than the newest stored booking
	e := booking.New(repo, booking.WithRetry(1, 0), booking.WithClock(func() time.Time { return t0 }))
	b, err := e.CreateBooking(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, newest, b.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoWaitlistsWhenFull(t *testing.T) {
	repo, mock := newMock(t)
	expectCreate(mock, 2)
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(10, 5, "waitlisted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	b, err := booking.New(repo, booking.WithRetry(1, 0)).CreateBooking(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitlisted, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoDeadlockIsRetried(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM class_schedules WHERE id = \? FOR UPDATE`).
		WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})
	mock.ExpectRollback()
	expectCreate(mock, 0)
	mock.ExpectExec(`INSERT INTO bookings`).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectCommit()

	b, err := booking.New(repo, booking.WithRetry(2, 0)).CreateBooking(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoDuplicateInsertIsConflict(t *testing.T) {
	repo, mock := newMock(t)
	expectCreate(mock, 0)
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '5-10' for key 'uq_bookings_active'"})
	mock.ExpectRollback()

	_, err := booking.New(repo, booking.WithRetry(1, 0)).CreateBooking(context.Background(), 10, 5)
	assert.True(t, booking.IsConflict(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoMissingClassRollsBack(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM class_schedules WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(classCols))
	mock.ExpectRollback()

	_, err := booking.New(repo).CreateBooking(context.Background(), 10, 5)
	assert.True(t, booking.IsNotFound(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoCancelPromotesOldest(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings WHERE id = \?$`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(3, 10, 5, "confirmed", t0))
	mock.ExpectQuery(`FROM class_schedules WHERE id = \? FOR UPDATE`).
		WithArgs(5).
		WillReturnRows(classRow(5, 1))
	mock.ExpectQuery(`FROM bookings WHERE id = \? FOR UPDATE`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(3, 10, 5, "confirmed", t0))
	mock.ExpectExec(`UPDATE bookings SET status = \? WHERE id = \?`).
		WithArgs("cancelled", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM bookings`).
		WithArgs(5, "confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectQuery(`ORDER BY created_at, id LIMIT 1 FOR UPDATE`).
		WithArgs(5, "waitlisted").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(4, 11, 5, "waitlisted", t0.Add(time.Second)))
	mock.ExpectExec(`UPDATE bookings SET status = \? WHERE id = \?`).
		WithArgs("confirmed", 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := booking.New(repo).CancelBooking(context.Background(), 3, model.Principal{ID: 10, Role: model.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepoListBookings(t *testing.T) {
	repo, mock := newMock(t)
	member := uint64(10)
	mock.ExpectQuery(`FROM bookings WHERE member_id = \? ORDER BY created_at, id`).
		WithArgs(member).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(1, 10, 5, "confirmed", t0).
			AddRow(2, 10, 6, "waitlisted", t0.Add(time.Minute)))

	out, err := repo.ListBookings(context.Background(), &member)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.StatusWaitlisted, out[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1205}), ErrTxConflict)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1062}), ErrDuplicate)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1451}), ErrConflict)
	assert.Nil(t, classify(nil))
	other := &mysql.MySQLError{Number: 1146}
	assert.Equal(t, error(other), classify(other))
}
