package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
)

// Trainers exposes trainer profiles with the method set of
// repository.TrainerRepo.
func (s *Store) Trainers() *Trainers { return &Trainers{s} }

type Trainers struct{ s *Store }

func (t *Trainers) List(ctx context.Context) ([]model.TrainerProfile, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TrainerProfile, 0, len(s.trainers))
	for _, p := range s.trainers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *Trainers) GetByID(ctx context.Context, id uint64) (model.TrainerProfile, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.trainers[id]
	if !ok {
		return model.TrainerProfile{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *Trainers) GetByUserID(ctx context.Context, userID uint64) (model.TrainerProfile, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.trainerByUser(userID); ok {
		return p, nil
	}
	return model.TrainerProfile{}, repository.ErrNotFound
}

func (t *Trainers) Create(ctx context.Context, p *model.TrainerProfile) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[p.UserID]; !ok {
		return errors.New("foreign key: user does not exist")
	}
	if _, ok := s.trainerByUser(p.UserID); ok {
		return repository.ErrDuplicate
	}
	s.nextTrainerID++
	p.ID = s.nextTrainerID
	p.CreatedAt = s.now().UTC()
	s.trainers[p.ID] = *p
	return nil
}

func (t *Trainers) Update(ctx context.Context, p *model.TrainerProfile) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.trainers[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.UserID, p.CreatedAt = cur.UserID, cur.CreatedAt
	s.trainers[p.ID] = *p
	return nil
}

func (t *Trainers) Delete(ctx context.Context, id uint64) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trainers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.trainers, id)
	return nil
}

// trainerByUser finds the profile of userID.  Callers hold s.mu.
func (s *Store) trainerByUser(userID uint64) (model.TrainerProfile, bool) {
	for _, p := range s.trainers {
		if p.UserID == userID {
			return p, true
		}
	}
	return model.TrainerProfile{}, false
}
