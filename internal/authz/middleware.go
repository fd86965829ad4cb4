package authz

import (
	"github.com/gofiber/fiber/v2"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/session"
)

const principalKey = "auth_principal"

// ResolvePrincipal runs the session resolver once per request and
// stores the immutable result for downstream guards and handlers. It
// never rejects: anonymous requests continue as anonymous.
func ResolvePrincipal(resolver *session.Resolver, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := session.ExtractToken(c.Get(fiber.HeaderAuthorization), c.Cookies(cookieName))
		principal := resolver.Resolve(c.UserContext(), token)
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// PrincipalFromContext retrieves the resolved principal.
func PrincipalFromContext(c *fiber.Ctx) domain.Principal {
	if val, ok := c.Locals(principalKey).(domain.Principal); ok {
		return val
	}
	return domain.Anonymous
}

// RequireRoles is the API-boundary guard: a denial becomes a structured
// error response instead of the handler running.
func RequireRoles(metrics *observability.Metrics, roles ...domain.Role) fiber.Handler {
	required := domain.NewRoleSet(roles...)
	return func(c *fiber.Ctx) error {
		decision := Authorize(PrincipalFromContext(c), required)
		if !decision.Allowed {
			metrics.RecordDenial(string(decision.Reason))
			return DenialError(decision)
		}
		return c.Next()
	}
}

// RequirePending admits authenticated subjects regardless of role; it
// guards only the deferred role-selection endpoint.
func RequirePending(metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := AuthorizePending(PrincipalFromContext(c))
		if !decision.Allowed {
			metrics.RecordDenial(string(decision.Reason))
			return DenialError(decision)
		}
		return c.Next()
	}
}

// RequireRolesOrRedirect is the navigation-boundary guard: denials
// redirect instead of rendering.
func RequireRolesOrRedirect(metrics *observability.Metrics, roles ...domain.Role) fiber.Handler {
	required := domain.NewRoleSet(roles...)
	return func(c *fiber.Ctx) error {
		decision := Authorize(PrincipalFromContext(c), required)
		if decision.Allowed {
			return c.Next()
		}
		metrics.RecordDenial(string(decision.Reason))
		switch decision.Reason {
		case ReasonRoleNotFinalized:
			return c.Redirect("/seleccionar-rol", fiber.StatusFound)
		case ReasonInsufficientRole:
			return c.Redirect("/unauthorized", fiber.StatusFound)
		default:
			return c.Redirect("/login", fiber.StatusFound)
		}
	}
}
