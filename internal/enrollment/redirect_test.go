package enrollment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/enrollment"
)

func TestRedirectPathFor(t *testing.T) {
	assert.Equal(t, "/students", enrollment.RedirectPathFor(domain.RoleStudent))
	assert.Equal(t, "/proyectos", enrollment.RedirectPathFor(domain.RoleCorporate))
	assert.Equal(t, "/admin", enrollment.RedirectPathFor(domain.RoleAdmin))
	assert.Equal(t, "/", enrollment.RedirectPathFor(domain.RoleUnassigned))
	assert.Equal(t, "/", enrollment.RedirectPathFor(domain.Role("mystery")))
}

func TestDefaultRoleFor(t *testing.T) {
	assert.Equal(t, domain.RoleStudent, enrollment.DefaultRoleFor("ana@uni.edu"))
	assert.Equal(t, domain.RoleUnassigned, enrollment.DefaultRoleFor(""))
	assert.Equal(t, domain.RoleUnassigned, enrollment.DefaultRoleFor("   "))
}

func TestDomainAllowed(t *testing.T) {
	assert.True(t, enrollment.DomainAllowed("any@anywhere.io", nil))
	assert.True(t, enrollment.DomainAllowed("ana@uni.edu", []string{"uni.edu"}))
	assert.True(t, enrollment.DomainAllowed("ana@UNI.EDU", []string{"uni.edu"}))
	assert.False(t, enrollment.DomainAllowed("who@gmail.com", []string{"uni.edu"}))
	assert.False(t, enrollment.DomainAllowed("no-at-sign", []string{"uni.edu"}))
	assert.False(t, enrollment.DomainAllowed("trailing@", []string{"uni.edu"}))
}
