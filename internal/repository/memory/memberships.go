package memory

import (
	"context"
	"errors"
	"sort"

	"github.com/iliyamo/gym-backend/internal/model"
	"github.com/iliyamo/gym-backend/internal/repository"
)

// Memberships exposes plans and memberships with the method set of
// repository.MembershipRepo.
func (s *Store) Memberships() *Memberships { return &Memberships{s} }

type Memberships struct{ s *Store }

func (m *Memberships) ListPlans(ctx context.Context) ([]model.MembershipPlan, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MembershipPlan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memberships) GetPlan(ctx context.Context, id uint64) (model.MembershipPlan, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return model.MembershipPlan{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *Memberships) CreatePlan(ctx context.Context, p *model.MembershipPlan) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.planNameTaken(p.Name, 0) {
		return repository.ErrDuplicate
	}
	s.nextPlanID++
	p.ID = s.nextPlanID
	p.CreatedAt = s.now().UTC()
	s.plans[p.ID] = *p
	return nil
}

func (m *Memberships) UpdatePlan(ctx context.Context, p *model.MembershipPlan) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.plans[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.planNameTaken(p.Name, p.ID) {
		return repository.ErrDuplicate
	}
	p.CreatedAt = cur.CreatedAt
	s.plans[p.ID] = *p
	return nil
}

// DeletePlan refuses plans that memberships still reference.
func (m *Memberships) DeletePlan(ctx context.Context, id uint64) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return repository.ErrNotFound
	}
	for _, ms := range s.memberships {
		if ms.PlanID == id {
			return repository.ErrConflict
		}
	}
	delete(s.plans, id)
	return nil
}

func (m *Memberships) ListMemberships(ctx context.Context, memberID *uint64) ([]model.Membership, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Membership, 0)
	for _, ms := range s.memberships {
		if memberID != nil && ms.MemberID != *memberID {
			continue
		}
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memberships) GetMembership(ctx context.Context, id uint64) (model.Membership, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.memberships[id]
	if !ok {
		return model.Membership{}, repository.ErrNotFound
	}
	return ms, nil
}

func (m *Memberships) CreateMembership(ctx context.Context, ms *model.Membership) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[ms.MemberID]; !ok {
		return errors.New("foreign key: member does not exist")
	}
	if _, ok := s.plans[ms.PlanID]; !ok {
		return errors.New("foreign key: plan does not exist")
	}
	s.nextMembershipID++
	ms.ID = s.nextMembershipID
	ms.StartDate, ms.EndDate = ms.StartDate.UTC(), ms.EndDate.UTC()
	ms.CreatedAt = s.now().UTC()
	s.memberships[ms.ID] = *ms
	return nil
}

func (m *Memberships) SetMembershipStatus(ctx context.Context, id uint64, status model.MembershipStatus) (model.Membership, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.memberships[id]
	if !ok {
		return model.Membership{}, repository.ErrNotFound
	}
	ms.Status = status
	s.memberships[id] = ms
	return ms, nil
}

// planNameTaken reports whether another plan than except uses name.
// Callers hold s.mu.
func (s *Store) planNameTaken(name string, except uint64) bool {
	for _, p := range s.plans {
		if p.Name == name && p.ID != except {
			return true
		}
	}
	return false
}
