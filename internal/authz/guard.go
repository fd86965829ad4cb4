package authz

import (
	"github.com/f4ntasma/codex/internal/domain"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// Reason explains a denial.
type Reason string

const (
	ReasonUnauthenticated  Reason = apperrors.CodeUnauthenticated
	ReasonRoleNotFinalized Reason = apperrors.CodeRoleNotFinalized
	ReasonInsufficientRole Reason = apperrors.CodeInsufficientRole
)

// Decision is the guard verdict for one principal against one
// operation's required role set.
type Decision struct {
	Allowed bool
	Reason  Reason
}

var allow = Decision{Allowed: true}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Authorize decides whether the principal may execute an operation
// requiring one of the given roles.
//
// Rules, in order: anonymous callers are always unauthenticated; an
// unassigned role is never sufficient (the role-selection endpoint is
// exempted via AuthorizePending, an explicit allow-list rather than an
// ordering accident); admin satisfies any set containing student or
// corporate.
func Authorize(principal domain.Principal, required domain.RoleSet) Decision {
	if !principal.Authenticated {
		return deny(ReasonUnauthenticated)
	}
	if principal.Role == domain.RoleUnassigned {
		return deny(ReasonRoleNotFinalized)
	}
	if required.Contains(principal.Role) {
		return allow
	}
	if principal.Role == domain.RoleAdmin &&
		(required.Contains(domain.RoleStudent) || required.Contains(domain.RoleCorporate)) {
		return allow
	}
	return deny(ReasonInsufficientRole)
}

// AuthorizePending is the one deliberate exception: it admits subjects
// whose role is still unassigned, so they can reach the deferred
// role-selection endpoint. Subjects with a concrete role also pass (a
// re-submission is handled by the enrollment flow, not denied here).
func AuthorizePending(principal domain.Principal) Decision {
	if !principal.Authenticated {
		return deny(ReasonUnauthenticated)
	}
	return allow
}

// DenialError maps a denial to its DomainError for API responses.
func DenialError(d Decision) error {
	switch d.Reason {
	case ReasonRoleNotFinalized:
		return apperrors.NewRoleNotFinalized()
	case ReasonInsufficientRole:
		return apperrors.NewInsufficientRole()
	default:
		return apperrors.NewUnauthenticated("authentication required")
	}
}
