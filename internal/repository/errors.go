// Package repository implements MySQL persistence for users, class
// schedules, bookings, memberships, trainer profiles and the dashboard
// aggregates.  Driver errors are classified into the
// sentinel values below so the booking engine and the handlers never
// inspect *mysql.MySQLError themselves.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/gym-backend/internal/booking"
)

// ErrNotFound is returned when the referenced row does not exist.
var ErrNotFound = booking.ErrNoRecord

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key,
// e.g. a second attendance row for a booking or a second active
// booking for the same member and class.
var ErrDuplicate = booking.ErrDuplicate

// ErrTxConflict marks a transient transactional failure (deadlock or
// lock wait timeout).  The whole transaction may be retried.
var ErrTxConflict = booking.ErrTxConflict

// MySQL server error numbers we classify.
const (
	mysqlErrDupEntry        = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrRowIsReferenced = 1451
)

// classify maps driver errors onto the sentinels above.  Errors it does
// not recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDupEntry:
			return errors.Join(ErrDuplicate, err)
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return errors.Join(ErrTxConflict, err)
		case mysqlErrRowIsReferenced:
			return errors.Join(ErrConflict, err)
		}
	}
	return err
}
