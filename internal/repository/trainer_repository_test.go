package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-backend/internal/model"
)

var trainerCols = []string{"id", "user_id", "bio", "specialties", "certifications", "created_at"}

func TestTrainerRepoCreate(t *testing.T) {
	db, mock := newDB(t)
	spin := "spin"
	mock.ExpectExec(`INSERT INTO trainers`).
		WithArgs(2, nil, "spin", nil).
		WillReturnResult(sqlmock.NewResult(4, 1))
	mock.ExpectQuery(`FROM trainers WHERE id = \?`).
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows(trainerCols).AddRow(4, 2, nil, "spin", nil, t0))

	tp := model.TrainerProfile{UserID: 2, Specialties: &spin}
	require.NoError(t, NewTrainerRepo(db).Create(context.Background(), &tp))
	assert.Equal(t, uint64(4), tp.ID)
	assert.Nil(t, tp.Bio)
	assert.Equal(t, "spin", *tp.Specialties)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerRepoErrors(t *testing.T) {
	t.Run("second profile", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectExec(`INSERT INTO trainers`).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '2' for key 'uq_trainer_user'"})
		err := NewTrainerRepo(db).Create(context.Background(), &model.TrainerProfile{UserID: 2})
		assert.ErrorIs(t, err, ErrDuplicate)
	})
	t.Run("no profile for user", func(t *testing.T) {
		db, mock := newDB(t)
		mock.ExpectQuery(`FROM trainers WHERE user_id = \?`).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(trainerCols))
		_, err := NewTrainerRepo(db).GetByUserID(context.Background(), 2)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
