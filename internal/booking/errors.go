package booking

import "errors"

var (
	// ErrNotFound is returned when a booking, class or attendance record
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not act on the booking:
	// a member touching another member's booking, or a non-admin recording
	// attendance.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when the current state rules the operation
	// out, such as a second active booking for the same class or a repeat
	// cancellation.  A transaction that still fails after the last retry
	// is reported as ErrConflict too.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err wraps ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidInput reports whether err wraps ErrInvalidInput.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
