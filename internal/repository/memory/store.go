// Package memory is an in-process storage backend used when
// STORAGE_DRIVER=memory and by tests.  It implements the same contracts
// as the MySQL repositories: users, class schedules, the booking
// gateway, memberships, trainer profiles and dashboards.
//
// Booking transactions are serialized by a single mutex and work on a
// copy of the booking and attendance tables, which replaces the live
// tables only when the transaction function succeeds.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/gym-backend/internal/booking"
	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
	"github.com/iliyamo/gym-backend/internal/utils"
)

type Store struct {
	mu sync.Mutex

	users       map[uint64]model.User
	classes     map[uint64]model.ClassSchedule
	plans       map[uint64]model.MembershipPlan
	memberships map[uint64]model.Membership
	trainers    map[uint64]model.TrainerProfile
	tables      tables

	nextUserID       uint64
	nextClassID      uint64
	nextPlanID       uint64
	nextMembershipID uint64
	nextTrainerID    uint64

	// failures makes the next N transactions fail with ErrTxConflict
	// after running their function.
	failures int
	now      func() time.Time
}

// tables holds the rows touched by booking transactions.
type tables struct {
	bookings      map[uint64]model.Booking
	attendance    map[uint64]model.Attendance // keyed by booking id
	nextBookingID uint64
	nextAttendID  uint64
}

func (t tables) clone() tables {
	c := tables{
		bookings:      make(map[uint64]model.Booking, len(t.bookings)),
		attendance:    make(map[uint64]model.Attendance, len(t.attendance)),
		nextBookingID: t.nextBookingID,
		nextAttendID:  t.nextAttendID,
	}
	for k, v := range t.bookings {
		c.bookings[k] = v
	}
	for k, v := range t.attendance {
		c.attendance[k] = v
	}
	return c
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:       make(map[uint64]model.User),
		classes:     make(map[uint64]model.ClassSchedule),
		plans:       make(map[uint64]model.MembershipPlan),
		memberships: make(map[uint64]model.Membership),
		trainers:    make(map[uint64]model.TrainerProfile),
		tables: tables{
			bookings:   make(map[uint64]model.Booking),
			attendance: make(map[uint64]model.Attendance),
		},
		now: time.Now,
	}
}

var _ booking.Gateway = (*Store)(nil)

// FailNextTx makes the next n transactions report a transient conflict
// and discard their writes.
func (s *Store) FailNextTx(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

// ---- users ----

// Users exposes the user half of the store with the method set of
// repository.UserRepo.
func (s *Store) Users() *Users { return &Users{s} }

type Users struct{ s *Store }

// Create stores a new user with a bcrypt password hash.
func (u *Users) Create(ctx context.Context, email, password, fullName string, role model.Role, cost int) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return model.User{}, err
	}
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.users {
		if cur.Email == email {
			return model.User{}, repository.ErrEmailExists
		}
	}
	s.nextUserID++
	user := model.User{
		ID:           s.nextUserID,
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		CreatedAt:    s.now().UTC(),
	}
	s.users[user.ID] = user
	return user, nil
}

func (u *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cur := range s.users {
		if cur.Email == email {
			return cur, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (u *Users) GetByID(ctx context.Context, id uint64) (model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (u *Users) IsTrainer(ctx context.Context, id uint64) (bool, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	return ok && user.Role == model.RoleTrainer, nil
}

// ---- classes ----

// Classes exposes the class half of the store with the method set of
// repository.ClassRepo.
func (s *Store) Classes() *Classes { return &Classes{s} }

type Classes struct{ s *Store }

func (c *Classes) List(ctx context.Context, f repository.ClassFilter) ([]model.ClassWithCount, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ClassWithCount, 0, len(s.classes))
	for _, cl := range s.classes {
		if f.StartFrom != nil && cl.StartTime.Before(*f.StartFrom) {
			continue
		}
		if f.StartTo != nil && cl.StartTime.After(*f.StartTo) {
			continue
		}
		if f.TrainerID != nil && cl.TrainerID != *f.TrainerID {
			continue
		}
		out = append(out, model.ClassWithCount{ClassSchedule: cl, BookedCount: s.tables.confirmed(cl.ID)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (c *Classes) GetByID(ctx context.Context, id uint64) (model.ClassWithCount, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cl, ok := s.classes[id]
	if !ok {
		return model.ClassWithCount{}, repository.ErrNotFound
	}
	return model.ClassWithCount{ClassSchedule: cl, BookedCount: s.tables.confirmed(id)}, nil
}

func (c *Classes) Create(ctx context.Context, cl *model.ClassSchedule) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextClassID++
	cl.ID = s.nextClassID
	cl.StartTime = cl.StartTime.UTC()
	cl.EndTime = cl.EndTime.UTC()
	cl.CreatedAt = s.now().UTC()
	s.classes[cl.ID] = *cl
	return nil
}

func (c *Classes) Update(ctx context.Context, cl *model.ClassSchedule) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.classes[cl.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cl.CreatedAt = cur.CreatedAt
	cl.StartTime = cl.StartTime.UTC()
	cl.EndTime = cl.EndTime.UTC()
	s.classes[cl.ID] = *cl
	return nil
}

// Delete removes the class with its bookings and their attendance.
func (c *Classes) Delete(ctx context.Context, id uint64) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.classes, id)
	for bid, b := range s.tables.bookings {
		if b.ClassID == id {
			delete(s.tables.bookings, bid)
			delete(s.tables.attendance, bid)
		}
	}
	return nil
}

// ---- booking gateway ----

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{s: s, t: s.tables.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if s.failures > 0 {
		s.failures--
		return booking.ErrTxConflict
	}
	s.tables = tx.t
	return nil
}

func (s *Store) ListBookings(ctx context.Context, memberID *uint64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range s.tables.bookings {
		if memberID != nil && b.MemberID != *memberID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WaitlistedBefore(out[j]) })
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables.booking(id)
}

func (s *Store) GetAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.tables.attendance[bookingID]
	if !ok {
		return model.Attendance{}, repository.ErrNotFound
	}
	return a, nil
}

func (t tables) booking(id uint64) (model.Booking, error) {
	b, ok := t.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b, nil
}

func (t tables) confirmed(classID uint64) int {
	n := 0
	for _, b := range t.bookings {
		if b.ClassID == classID && b.Status == model.StatusConfirmed {
			n++
		}
	}
	return n
}

// memTx runs with Store.mu held.
type memTx struct {
	s *Store
	t tables
}

func (tx *memTx) GetClassForUpdate(ctx context.Context, classID uint64) (model.ClassSchedule, error) {
	c, ok := tx.s.classes[classID]
	if !ok {
		return model.ClassSchedule{}, repository.ErrNotFound
	}
	return c, nil
}

func (tx *memTx) CountConfirmed(ctx context.Context, classID uint64) (int, error) {
	return tx.t.confirmed(classID), nil
}

func (tx *memTx) FindActiveBooking(ctx context.Context, memberID, classID uint64) (model.Booking, error) {
	for _, b := range tx.t.bookings {
		if b.MemberID == memberID && b.ClassID == classID && b.Status.Active() {
			return b, nil
		}
	}
	return model.Booking{}, repository.ErrNotFound
}

func (tx *memTx) FindOldestWaitlisted(ctx context.Context, classID uint64) (model.Booking, error) {
	var best model.Booking
	found := false
	for _, b := range tx.t.bookings {
		if b.ClassID != classID || b.Status != model.StatusWaitlisted {
			continue
		}
		if !found || b.WaitlistedBefore(best) {
			best, found = b, true
		}
	}
	if !found {
		return model.Booking{}, repository.ErrNotFound
	}
	return best, nil
}

func (tx *memTx) LatestBookingCreatedAt(ctx context.Context, classID uint64) (time.Time, error) {
	var latest time.Time
	found := false
	for _, b := range tx.t.bookings {
		if b.ClassID == classID && (!found || b.CreatedAt.After(latest)) {
			latest, found = b.CreatedAt, true
		}
	}
	if !found {
		return time.Time{}, repository.ErrNotFound
	}
	return latest, nil
}

func (tx *memTx) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	return tx.t.booking(id)
}

func (tx *memTx) GetBookingForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return tx.t.booking(id)
}

func (tx *memTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := tx.s.classes[b.ClassID]; !ok {
		return errors.New("foreign key: class does not exist")
	}
	if b.Status.Active() {
		if _, err := tx.FindActiveBooking(ctx, b.MemberID, b.ClassID); err == nil {
			return repository.ErrDuplicate
		}
	}
	tx.t.nextBookingID++
	b.ID = tx.t.nextBookingID
	b.CreatedAt = b.CreatedAt.UTC()
	tx.t.bookings[b.ID] = *b
	return nil
}

func (tx *memTx) UpdateBookingStatus(ctx context.Context, id uint64, status model.BookingStatus) error {
	b, ok := tx.t.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.Status = status
	tx.t.bookings[id] = b
	return nil
}

func (tx *memTx) InsertAttendance(ctx context.Context, a *model.Attendance) error {
	if _, ok := tx.t.bookings[a.BookingID]; !ok {
		return errors.New("foreign key: booking does not exist")
	}
	if _, ok := tx.t.attendance[a.BookingID]; ok {
		return repository.ErrDuplicate
	}
	tx.t.nextAttendID++
	a.ID = tx.t.nextAttendID
	a.CreatedAt = a.CreatedAt.UTC()
	tx.t.attendance[a.BookingID] = *a
	return nil
}

func (tx *memTx) FindAttendanceByBooking(ctx context.Context, bookingID uint64) (model.Attendance, error) {
	a, ok := tx.t.attendance[bookingID]
	if !ok {
		return model.Attendance{}, repository.ErrNotFound
	}
	return a, nil
}
