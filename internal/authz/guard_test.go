package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/f4ntasma/codex/internal/authz"
	"github.com/f4ntasma/codex/internal/domain"
)

func subject(role domain.Role) domain.Principal {
	return domain.Principal{
		Authenticated: true,
		SubjectID:     "subject-1",
		Role:          role,
		SessionID:     "session-1",
	}
}

func TestAuthorizeAnonymousAlwaysUnauthenticated(t *testing.T) {
	sets := []domain.RoleSet{
		domain.NewRoleSet(domain.RoleStudent),
		domain.NewRoleSet(domain.RoleCorporate),
		domain.NewRoleSet(domain.RoleAdmin),
		domain.NewRoleSet(domain.RoleStudent, domain.RoleCorporate, domain.RoleAdmin),
	}
	for _, set := range sets {
		decision := authz.Authorize(domain.Anonymous, set)
		assert.False(t, decision.Allowed)
		assert.Equal(t, authz.ReasonUnauthenticated, decision.Reason)
	}
}

func TestAuthorizeUnassignedDeniedEverywhere(t *testing.T) {
	decision := authz.Authorize(subject(domain.RoleUnassigned), domain.NewRoleSet(domain.RoleStudent))
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonRoleNotFinalized, decision.Reason)

	// Even a set that nominally lists unassigned does not admit it; the
	// only way in is the explicit pending allow-list.
	decision = authz.Authorize(subject(domain.RoleUnassigned), domain.NewRoleSet(domain.RoleUnassigned))
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonRoleNotFinalized, decision.Reason)
}

func TestAuthorizePendingAdmitsUnassigned(t *testing.T) {
	decision := authz.AuthorizePending(subject(domain.RoleUnassigned))
	assert.True(t, decision.Allowed)

	decision = authz.AuthorizePending(domain.Anonymous)
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonUnauthenticated, decision.Reason)
}

func TestAuthorizeMatchingRole(t *testing.T) {
	decision := authz.Authorize(subject(domain.RoleStudent), domain.NewRoleSet(domain.RoleStudent))
	assert.True(t, decision.Allowed)
}

func TestAuthorizeInsufficientRole(t *testing.T) {
	decision := authz.Authorize(subject(domain.RoleStudent), domain.NewRoleSet(domain.RoleCorporate))
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonInsufficientRole, decision.Reason)

	decision = authz.Authorize(subject(domain.RoleCorporate), domain.NewRoleSet(domain.RoleAdmin))
	assert.False(t, decision.Allowed)
	assert.Equal(t, authz.ReasonInsufficientRole, decision.Reason)
}

func TestAuthorizeAdminSuperset(t *testing.T) {
	admin := subject(domain.RoleAdmin)

	assert.True(t, authz.Authorize(admin, domain.NewRoleSet(domain.RoleStudent)).Allowed)
	assert.True(t, authz.Authorize(admin, domain.NewRoleSet(domain.RoleCorporate)).Allowed)
	assert.True(t, authz.Authorize(admin, domain.NewRoleSet(domain.RoleStudent, domain.RoleCorporate)).Allowed)
	assert.True(t, authz.Authorize(admin, domain.NewRoleSet(domain.RoleAdmin)).Allowed)
}
