package enrollment

import "github.com/f4ntasma/codex/internal/domain"

// RedirectPathFor maps a finalized role to its landing page. Every
// entry point routes through this one function so the mapping cannot
// drift between flows.
func RedirectPathFor(role domain.Role) string {
	switch role {
	case domain.RoleStudent:
		return "/students"
	case domain.RoleCorporate:
		return "/proyectos"
	case domain.RoleAdmin:
		return "/admin"
	default:
		return "/"
	}
}
