package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/user-access-service/internal/domain"
	apperrors "github.com/spec-kit/user-access-service/pkg/util"
)

// RequireAuthenticated ensures a caller identity was established by the gate.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return rejectAnonymous(c)
		}
		return c.Next()
	}
}

// RequireRoles ensures the principal holds one of the allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return rejectAnonymous(c)
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// rejectAnonymous distinguishes a disabled account (403) from a plain
// unauthenticated request (401).
func rejectAnonymous(c *fiber.Ctx) error {
	if DisabledFromContext(c) {
		return apperrors.NewForbidden("account disabled, contact an administrator")
	}
	return apperrors.NewUnauthorized("not authenticated")
}
