package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// UserResponse never carries the password hash or the refresh token.
// Directory entries for employees leave email and timestamps empty.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"is_active"`
	LastLogin *time.Time  `json:"last_login,omitempty"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	UpdatedAt *time.Time  `json:"updated_at,omitempty"`
}

// NewUserResponse converts a user record.
func NewUserResponse(u *domain.User) UserResponse {
	if u == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		LastLogin: u.LastLogin,
		CreatedAt: timeOrNil(u.CreatedAt),
		UpdatedAt: timeOrNil(u.UpdatedAt),
	}
}

// NewUserList converts a slice of users.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

// CreateUserRequest is an admin-created account.
type CreateUserRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// UpdateUserRequest is a partial admin update.
type UpdateUserRequest struct {
	Name     *string      `json:"name"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Role     *domain.Role `json:"role"`
	IsActive *bool        `json:"is_active"`
}

// UpdateProfileRequest is a partial self-service update.
type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
