package domain

import "time"

// Principal is the authenticated caller of a request. It is loaded fresh
// from storage for every request so deactivation and role changes apply
// immediately.
type Principal struct {
	ID       string
	Email    string
	Name     string
	Role     Role
	IsActive bool
}

// Is reports whether the principal holds one of roles.
func (p *Principal) Is(roles ...Role) bool {
	if p == nil {
		return false
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// TokenPair is the result of a successful login, registration or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult is returned to the client after authentication.
type AuthResult struct {
	TokenPair
	User *User
}
