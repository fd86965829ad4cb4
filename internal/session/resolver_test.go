package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/repository"
	"github.com/f4ntasma/codex/internal/session"
)

func newResolverFixture(t *testing.T, ttl time.Duration) (*session.Issuer, *session.Resolver, *session.MemoryStore, *repository.MemoryProfileRepository) {
	t.Helper()
	tokens := session.NewTokenManager("test-secret", ttl)
	store := session.NewMemoryStore()
	profiles := repository.NewMemoryProfileRepository()
	issuer := session.NewIssuer(tokens, store)
	resolver := session.NewResolver(tokens, store, profiles, zap.NewNop())
	return issuer, resolver, store, profiles
}

func seedProfile(t *testing.T, profiles *repository.MemoryProfileRepository, subjectID string, role domain.Role) {
	t.Helper()
	_, err := profiles.EnsureProfile(context.Background(), subjectID, subjectID+"@uni.edu", "Test Subject", role)
	require.NoError(t, err)
}

func TestExtractTokenPrefersBearerHeader(t *testing.T) {
	assert.Equal(t, "hdr", session.ExtractToken("Bearer hdr", "cookie"))
	assert.Equal(t, "hdr", session.ExtractToken("bearer hdr", "cookie"))
	assert.Equal(t, "cookie", session.ExtractToken("", "cookie"))
	assert.Equal(t, "cookie", session.ExtractToken("Basic abc", "cookie"))
	assert.Equal(t, "", session.ExtractToken("", ""))
}

func TestResolveRoundTrip(t *testing.T) {
	issuer, resolver, _, profiles := newResolverFixture(t, time.Hour)
	ctx := context.Background()
	seedProfile(t, profiles, "subj-1", domain.RoleStudent)

	sess, token, err := issuer.Issue(ctx, "subj-1", domain.RoleStudent)
	require.NoError(t, err)

	principal := resolver.Resolve(ctx, token)
	assert.True(t, principal.Authenticated)
	assert.Equal(t, "subj-1", principal.SubjectID)
	assert.Equal(t, domain.RoleStudent, principal.Role)
	assert.Equal(t, sess.ID, principal.SessionID)
}

func TestResolveGarbageToken(t *testing.T) {
	_, resolver, _, _ := newResolverFixture(t, time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		assert.Equal(t, domain.Anonymous, resolver.Resolve(context.Background(), token))
	}
}

func TestResolveForeignSignature(t *testing.T) {
	_, resolver, _, profiles := newResolverFixture(t, time.Hour)
	seedProfile(t, profiles, "subj-1", domain.RoleStudent)

	otherTokens := session.NewTokenManager("other-secret", time.Hour)
	forged, _, err := otherTokens.Generate("sess-1", "subj-1", time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.Anonymous, resolver.Resolve(context.Background(), forged))
}

func TestResolveRevokedSession(t *testing.T) {
	issuer, resolver, _, profiles := newResolverFixture(t, time.Hour)
	ctx := context.Background()
	seedProfile(t, profiles, "subj-1", domain.RoleStudent)

	sess, token, err := issuer.Issue(ctx, "subj-1", domain.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, issuer.Revoke(ctx, sess.ID))

	assert.Equal(t, domain.Anonymous, resolver.Resolve(ctx, token))
}

func TestResolveExpiredSessionRecord(t *testing.T) {
	issuer, resolver, store, profiles := newResolverFixture(t, time.Hour)
	ctx := context.Background()
	seedProfile(t, profiles, "subj-1", domain.RoleStudent)

	_, token, err := issuer.Issue(ctx, "subj-1", domain.RoleStudent)
	require.NoError(t, err)

	store.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	assert.Equal(t, domain.Anonymous, resolver.Resolve(ctx, token))
}

func TestResolveMissingProfile(t *testing.T) {
	issuer, resolver, _, _ := newResolverFixture(t, time.Hour)
	ctx := context.Background()

	_, token, err := issuer.Issue(ctx, "ghost", domain.RoleStudent)
	require.NoError(t, err)

	assert.Equal(t, domain.Anonymous, resolver.Resolve(ctx, token))
}

func TestResolveSeesRoleChangeImmediately(t *testing.T) {
	issuer, resolver, _, profiles := newResolverFixture(t, time.Hour)
	ctx := context.Background()
	seedProfile(t, profiles, "subj-1", domain.RoleUnassigned)

	_, token, err := issuer.Issue(ctx, "subj-1", domain.RoleUnassigned)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUnassigned, resolver.Resolve(ctx, token).Role)

	require.NoError(t, profiles.SetRole(ctx, "subj-1", domain.RoleCorporate, false))
	assert.Equal(t, domain.RoleCorporate, resolver.Resolve(ctx, token).Role)
}
