package domain

// Role is the access class granted to a subject.
type Role string

const (
	RoleStudent    Role = "student"
	RoleCorporate  Role = "corporate"
	RoleAdmin      Role = "admin"
	RoleUnassigned Role = "unassigned"
)

// Concrete reports whether the role is finalized (anything but unassigned).
func (r Role) Concrete() bool {
	switch r {
	case RoleStudent, RoleCorporate, RoleAdmin:
		return true
	}
	return false
}

// ParseRole validates a user-supplied role string.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleStudent, RoleCorporate, RoleAdmin, RoleUnassigned:
		return Role(s), true
	}
	return "", false
}

// RoleSet is the set of roles a protected operation accepts.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the listed roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s RoleSet) Contains(role Role) bool {
	_, ok := s[role]
	return ok
}
