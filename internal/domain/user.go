package domain

import "time"

// Role enumerates the access levels a user account can hold.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleCustomer Role = "CUSTOMER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether r belongs to the support organisation.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// User is the persisted account record. RefreshToken holds the single
// currently valid refresh token, or nil after logout.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	RefreshToken *string
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal converts the stored record into the per-request caller view.
func (u *User) Principal() *Principal {
	if u == nil {
		return nil
	}
	return &Principal{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}
