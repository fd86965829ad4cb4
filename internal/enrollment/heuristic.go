package enrollment

import (
	"strings"

	"github.com/f4ntasma/codex/internal/domain"
)

// DefaultRoleFor infers a default role from the email address. The
// result is only ever a default handed to the profile store on first
// sight; it never overrides an already-concrete role. Subjects without
// an email (phone-only sign-in) stay unassigned until they choose.
func DefaultRoleFor(email string) domain.Role {
	if strings.TrimSpace(email) == "" {
		return domain.RoleUnassigned
	}
	return domain.RoleStudent
}

// DomainAllowed applies the configurable signup gate: when the allow
// list is non-empty, the email's domain must appear in it. Checked only
// at first-sight profile creation.
func DomainAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	emailDomain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if emailDomain == d {
			return true
		}
	}
	return false
}
