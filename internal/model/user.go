package model

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.  Every authorization point
// switches on these values; unknown strings never become a Role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleTrainer Role = "trainer"
)

// ParseRole normalizes s and returns the matching Role.  The second
// result is false for anything outside the enumeration.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleMember:
		return RoleMember, true
	case RoleTrainer:
		return RoleTrainer, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	FullName     – display name.
//	Role         – admin, member or trainer.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Principal is the authenticated actor resolved from a request
// credential.
type Principal struct {
	ID   uint64
	Role Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleMember, RoleTrainer:
		return false
	}
	return false
}

// CanAccess reports whether the principal may read or change a record
// owned by ownerID: admins always can, everyone else only their own.
func (p Principal) CanAccess(ownerID uint64) bool {
	return p.IsAdmin() || p.ID == ownerID
}
