package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/gym-backend/internal/model"
)

// TrainerRepo manages trainer profiles.
type TrainerRepo struct {
	db *sql.DB
}

// NewTrainerRepo constructs a TrainerRepo with the given DB handle.
func NewTrainerRepo(db *sql.DB) *TrainerRepo {
	return &TrainerRepo{db: db}
}

const trainerColumns = "id, user_id, bio, specialties, certifications, created_at"

// List returns every profile ordered by id.
func (r *TrainerRepo) List(ctx context.Context) ([]model.TrainerProfile, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+trainerColumns+" FROM trainers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TrainerProfile, 0)
	for rows.Next() {
		t, err := scanTrainer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TrainerRepo) GetByID(ctx context.Context, id uint64) (model.TrainerProfile, error) {
	t, err := scanTrainer(r.db.QueryRowContext(ctx, "SELECT "+trainerColumns+" FROM trainers WHERE id = ?", id))
	return t, classify(err)
}

func (r *TrainerRepo) GetByUserID(ctx context.Context, userID uint64) (model.TrainerProfile, error) {
	t, err := scanTrainer(r.db.QueryRowContext(ctx, "SELECT "+trainerColumns+" FROM trainers WHERE user_id = ?", userID))
	return t, classify(err)
}

// Create inserts t.  A second profile for the same user surfaces as
// ErrDuplicate.
func (r *TrainerRepo) Create(ctx context.Context, t *model.TrainerProfile) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO trainers (user_id, bio, specialties, certifications) VALUES (?, ?, ?, ?)`,
		t.UserID, t.Bio, t.Specialties, t.Certifications)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*t = stored
	return nil
}

// Update overwrites the profile text of t.ID.
func (r *TrainerRepo) Update(ctx context.Context, t *model.TrainerProfile) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE trainers SET bio = ?, specialties = ?, certifications = ? WHERE id = ?`,
		t.Bio, t.Specialties, t.Certifications, t.ID)
	if err != nil {
		return classify(err)
	}
	stored, err := r.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	*t = stored
	return nil
}

// Delete removes the profile.  The user and their classes are kept.
func (r *TrainerRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trainers WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTrainer(s rowScanner) (model.TrainerProfile, error) {
	var t model.TrainerProfile
	var bio, specialties, certs sql.NullString
	if err := s.Scan(&t.ID, &t.UserID, &bio, &specialties, &certs, &t.CreatedAt); err != nil {
		return model.TrainerProfile{}, err
	}
	t.Bio, t.Specialties, t.Certifications = nullString(bio), nullString(specialties), nullString(certs)
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
