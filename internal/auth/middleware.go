package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const principalKey = "auth_principal"

// PrincipalResolver maps a bearer token to a live principal. It returns nil
// for anything that does not identify an active account.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, accessToken string) *domain.Principal
}

// AuthMiddleware resolves the caller for every request. It never rejects a
// request itself; unauthenticated callers continue as anonymous.
type AuthMiddleware struct {
	resolver PrincipalResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(resolver PrincipalResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// Handle stores the resolved principal (possibly nil) in the request locals.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if token := BearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
		if principal := m.resolver.ResolvePrincipal(c.UserContext(), token); principal != nil {
			c.Locals(principalKey, principal)
		}
	}
	return c.Next()
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// PrincipalFromContext retrieves the authenticated caller, if any.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	if !ok || principal == nil {
		return nil, false
	}
	return principal, true
}

// Principal returns the caller or nil for anonymous requests.
func Principal(c *fiber.Ctx) *domain.Principal {
	principal, _ := PrincipalFromContext(c)
	return principal
}
