package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/gym-backend/internal/model"
)

// MembershipRepo manages membership plans and the memberships members
// hold on them.
type MembershipRepo struct {
	db *sql.DB
}

// NewMembershipRepo constructs a MembershipRepo with the given DB handle.
func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

const (
	planColumns       = "id, name, description, duration_days, price, features, created_at"
	membershipColumns = "id, member_id, plan_id, start_date, end_date, status, created_at"
)

// ListPlans returns every plan ordered by id.
func (r *MembershipRepo) ListPlans(ctx context.Context) ([]model.MembershipPlan, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+planColumns+" FROM membership_plans ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.MembershipPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MembershipRepo) GetPlan(ctx context.Context, id uint64) (model.MembershipPlan, error) {
	p, err := scanPlan(r.db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM membership_plans WHERE id = ?", id))
	return p, classify(err)
}

// CreatePlan inserts p.  A taken name surfaces as ErrDuplicate.
func (r *MembershipRepo) CreatePlan(ctx context.Context, p *model.MembershipPlan) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO membership_plans (name, description, duration_days, price, features) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.DurationDays, p.Price, p.Features)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetPlan(ctx, uint64(id))
	if err != nil {
		return err
	}
	*p = stored
	return nil
}

// UpdatePlan overwrites the mutable columns of plan p.ID.
func (r *MembershipRepo) UpdatePlan(ctx context.Context, p *model.MembershipPlan) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE membership_plans SET name = ?, description = ?, duration_days = ?, price = ?, features = ? WHERE id = ?`,
		p.Name, p.Description, p.DurationDays, p.Price, p.Features, p.ID)
	if err != nil {
		return classify(err)
	}
	stored, err := r.GetPlan(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = stored
	return nil
}

// DeletePlan removes a plan.  A plan still referenced by memberships
// yields ErrConflict.
func (r *MembershipRepo) DeletePlan(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM membership_plans WHERE id = ?`, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMemberships returns memberships ordered by id.  A nil memberID
// lists every membership.
func (r *MembershipRepo) ListMemberships(ctx context.Context, memberID *uint64) ([]model.Membership, error) {
	q := "SELECT " + membershipColumns + " FROM memberships"
	var args []interface{}
	if memberID != nil {
		q += " WHERE member_id = ?"
		args = append(args, *memberID)
	}
	rows, err := r.db.QueryContext(ctx, q+" ORDER BY id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MembershipRepo) GetMembership(ctx context.Context, id uint64) (model.Membership, error) {
	m, err := scanMembership(r.db.QueryRowContext(ctx, "SELECT "+membershipColumns+" FROM memberships WHERE id = ?", id))
	return m, classify(err)
}

// CreateMembership inserts m as given; callers compute the dates.
func (r *MembershipRepo) CreateMembership(ctx context.Context, m *model.Membership) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (member_id, plan_id, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)`,
		m.MemberID, m.PlanID, m.StartDate.UTC(), m.EndDate.UTC(), string(m.Status))
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	stored, err := r.GetMembership(ctx, uint64(id))
	if err != nil {
		return err
	}
	*m = stored
	return nil
}

// SetMembershipStatus changes the status of membership id and returns
// the updated row.
func (r *MembershipRepo) SetMembershipStatus(ctx context.Context, id uint64, status model.MembershipStatus) (model.Membership, error) {
	if _, err := r.db.ExecContext(ctx, `UPDATE memberships SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return model.Membership{}, classify(err)
	}
	return r.GetMembership(ctx, id)
}

func scanPlan(s rowScanner) (model.MembershipPlan, error) {
	var p model.MembershipPlan
	var desc, features sql.NullString
	if err := s.Scan(&p.ID, &p.Name, &desc, &p.DurationDays, &p.Price, &features, &p.CreatedAt); err != nil {
		return model.MembershipPlan{}, err
	}
	p.Description = nullString(desc)
	p.Features = nullString(features)
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func scanMembership(s rowScanner) (model.Membership, error) {
	var m model.Membership
	var status string
	if err := s.Scan(&m.ID, &m.MemberID, &m.PlanID, &m.StartDate, &m.EndDate, &status, &m.CreatedAt); err != nil {
		return model.Membership{}, err
	}
	m.Status = model.MembershipStatus(status)
	m.StartDate, m.EndDate, m.CreatedAt = m.StartDate.UTC(), m.EndDate.UTC(), m.CreatedAt.UTC()
	return m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

