package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/gym-backend/internal/model"
)

// ClassRepo manages persistence for class schedules.  Times are stored
// as DATETIME(6) in UTC; the driver is opened with parseTime=true&loc=UTC
// so they scan straight into time.Time.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo constructs a ClassRepo with the given DB handle.
func NewClassRepo(db *sql.DB) *ClassRepo {
	return &ClassRepo{db: db}
}

// classSelect joins the confirmed-booking count so listings carry their
// occupancy without a query per class.
const classSelect = `SELECT c.id, c.title, c.description, c.trainer_id, c.room, c.capacity,
                            c.start_time, c.end_time, c.created_at,
                            (SELECT COUNT(*) FROM bookings b WHERE b.class_id = c.id AND b.status = 'confirmed')
                     FROM class_schedules c`

// ClassFilter narrows List by start time (both bounds inclusive) and
// optionally by the trainer's user id.
type ClassFilter struct {
	StartFrom *time.Time
	StartTo   *time.Time
	TrainerID *uint64
}

// List returns classes ordered by start time, then id.
func (r *ClassRepo) List(ctx context.Context, f ClassFilter) ([]model.ClassWithCount, error) {
	q := classSelect
	var where []string
	var args []interface{}
	if f.StartFrom != nil {
		where = append(where, "c.start_time >= ?")
		args = append(args, f.StartFrom.UTC())
	}
	if f.StartTo != nil {
		where = append(where, "c.start_time <= ?")
		args = append(args, f.StartTo.UTC())
	}
	if f.TrainerID != nil {
		where = append(where, "c.trainer_id = ?")
		args = append(args, *f.TrainerID)
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY c.start_time, c.id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ClassWithCount, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetByID retrieves a class with its booked count.  It returns
// ErrNotFound if there is no matching row.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (model.ClassWithCount, error) {
	c, err := scanClass(r.db.QueryRowContext(ctx, classSelect+" WHERE c.id = ?", id))
	if err != nil {
		return model.ClassWithCount{}, classify(err)
	}
	return c, nil
}

// Create inserts a new class and assigns the generated ID and
// created_at back to c.
func (r *ClassRepo) Create(ctx context.Context, c *model.ClassSchedule) error {
	const q = `INSERT INTO class_schedules (title, description, trainer_id, room, capacity, start_time, end_time)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, c.Title, c.Description, c.TrainerID, c.Room, c.Capacity, c.StartTime.UTC(), c.EndTime.UTC())
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return r.db.QueryRowContext(ctx, `SELECT created_at FROM class_schedules WHERE id = ?`, c.ID).Scan(&c.CreatedAt)
}

// Update overwrites every mutable column of the class identified by
// c.ID.  Callers merge partial input beforehand.
func (r *ClassRepo) Update(ctx context.Context, c *model.ClassSchedule) error {
	const q = `UPDATE class_schedules
               SET title = ?, description = ?, trainer_id = ?, room = ?, capacity = ?, start_time = ?, end_time = ?
               WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, c.Title, c.Description, c.TrainerID, c.Room, c.Capacity, c.StartTime.UTC(), c.EndTime.UTC(), c.ID)
	if err != nil {
		return classify(err)
	}
	// MySQL reports 0 affected rows when values are unchanged, so
	// existence is checked separately.
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM class_schedules WHERE id = ?`, c.ID).Scan(&one); err != nil {
			return classify(err)
		}
	}
	return nil
}

// Delete removes a class.  Bookings and attendance go with it through
// ON DELETE CASCADE.
func (r *ClassRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClass(s rowScanner) (model.ClassWithCount, error) {
	var c model.ClassWithCount
	var desc, room sql.NullString
	err := s.Scan(&c.ID, &c.Title, &desc, &c.TrainerID, &room, &c.Capacity,
		&c.StartTime, &c.EndTime, &c.CreatedAt, &c.BookedCount)
	if err != nil {
		return model.ClassWithCount{}, err
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
