package enrollment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/enrollment"
	"github.com/f4ntasma/codex/internal/events"
	"github.com/f4ntasma/codex/internal/identity"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/repository"
	"github.com/f4ntasma/codex/internal/session"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

type fakeExchanger struct {
	ident domain.SubjectIdentity
	err   error
}

func (f *fakeExchanger) AuthURL() (string, string, string, error) {
	return "https://idp.example/authorize", "state-1", "nonce-1", nil
}

func (f *fakeExchanger) Exchange(context.Context, string, string) (domain.SubjectIdentity, error) {
	if f.err != nil {
		return domain.SubjectIdentity{}, f.err
	}
	return f.ident, nil
}

type fakeCaptcha struct {
	pass bool
}

func (f *fakeCaptcha) Enabled() bool { return true }

func (f *fakeCaptcha) VerifyToken(context.Context, string) error {
	if f.pass {
		return nil
	}
	return apperrors.NewInvalidCredentialFormat("captcha verification failed", nil)
}

type machineFixture struct {
	machine    *enrollment.Machine
	accounts   *repository.MemoryAccountRepository
	profiles   *repository.MemoryProfileRepository
	store      *session.MemoryStore
	issuer     *session.Issuer
	resolver   *session.Resolver
	federated  *fakeExchanger
	dispatcher events.Dispatcher
	sentCode   *string
}

type fixtureOpts struct {
	allowedDomains []string
	captcha        identity.CaptchaVerifier
}

func newFixture(t *testing.T, opts fixtureOpts) *machineFixture {
	t.Helper()
	logger := zap.NewNop()
	accounts := repository.NewMemoryAccountRepository()
	profiles := repository.NewMemoryProfileRepository()

	sent := new(string)
	codes := identity.NewMemoryCodeStore()
	sender := func(_ context.Context, _, code string) error {
		*sent = code
		return nil
	}
	otp := identity.NewOtpService(codes, accounts, sender, nil, 5*time.Minute, logger)

	federated := &fakeExchanger{}
	password := identity.NewPasswordVerifier(accounts, nil, logger)
	verifier := identity.NewVerifier(password, federated, otp, logger)

	tokens := session.NewTokenManager("test-secret", time.Hour)
	store := session.NewMemoryStore()
	issuer := session.NewIssuer(tokens, store)
	resolver := session.NewResolver(tokens, store, profiles, logger)

	dispatcher := events.NewInMemoryDispatcher()
	machine := enrollment.NewMachine(enrollment.Dependencies{
		Verifier:       verifier,
		Otp:            otp,
		Captcha:        opts.captcha,
		Profiles:       profiles,
		Issuer:         issuer,
		Dispatcher:     dispatcher,
		Metrics:        observability.NewMetrics(prometheus.NewRegistry()),
		Logger:         logger,
		AllowedDomains: opts.allowedDomains,
	})

	return &machineFixture{
		machine:    machine,
		accounts:   accounts,
		profiles:   profiles,
		store:      store,
		issuer:     issuer,
		resolver:   resolver,
		federated:  federated,
		dispatcher: dispatcher,
		sentCode:   sent,
	}
}

func (f *machineFixture) seedStudent(t *testing.T, email, password string) string {
	t.Helper()
	hash, err := identity.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)

	account := &domain.Account{
		Email:         email,
		DisplayName:   "Seeded Student",
		PasswordHash:  hash,
		EmailVerified: true,
		Status:        domain.AccountStatusActive,
	}
	require.NoError(t, f.accounts.Create(context.Background(), account))
	_, err = f.profiles.EnsureProfile(context.Background(), account.ID, email, account.DisplayName, domain.RoleStudent)
	require.NoError(t, err)
	return account.ID
}

func TestPasswordLoginExistingStudent(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	subjectID := f.seedStudent(t, "ana@uni.edu", "p1")

	var loggedIn []events.Event
	f.dispatcher.Subscribe(events.EventLoggedIn, func(_ context.Context, e events.Event) error {
		loggedIn = append(loggedIn, e)
		return nil
	})

	outcome, err := f.machine.SubmitPassword(ctx, "ana@uni.edu", "p1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, outcome.State)
	assert.Equal(t, domain.RoleStudent, outcome.Role)
	assert.Equal(t, "/students", outcome.RedirectPath)
	assert.Equal(t, subjectID, outcome.SubjectID)
	require.NotEmpty(t, outcome.Token)

	principal := f.resolver.Resolve(ctx, outcome.Token)
	assert.True(t, principal.Authenticated)
	assert.Equal(t, domain.RoleStudent, principal.Role)

	require.Len(t, loggedIn, 1)
	assert.Equal(t, subjectID, loggedIn[0].SubjectID)
}

func TestPasswordLoginRejectionsAreIndistinguishable(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.seedStudent(t, "ana@uni.edu", "p1")

	wrongPassword, errWrong := f.machine.SubmitPassword(ctx, "ana@uni.edu", "bad", "")
	unknownAccount, errUnknown := f.machine.SubmitPassword(ctx, "ghost@uni.edu", "bad", "")

	assert.Equal(t, domain.StateRejected, wrongPassword.State)
	assert.Equal(t, domain.StateRejected, unknownAccount.State)
	assert.Equal(t, wrongPassword.Reason, unknownAccount.Reason)
	assert.Equal(t, apperrors.CodeCredentialMismatch, wrongPassword.Reason)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	assert.Empty(t, wrongPassword.Token)
}

func TestFederatedFirstSightThenSelectRole(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.federated.ident = domain.SubjectIdentity{
		SubjectID:   "fed-subject-1",
		Email:       "corg@empresa.com",
		DisplayName: "Empresa SA",
	}

	var selected []events.Event
	f.dispatcher.Subscribe(events.EventRoleSelected, func(_ context.Context, e events.Event) error {
		selected = append(selected, e)
		return nil
	})

	pending, err := f.machine.SubmitFederated(ctx, "auth-code", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateRolePending, pending.State)
	assert.Equal(t, domain.RoleUnassigned, pending.Role)
	assert.Empty(t, pending.RedirectPath)
	require.NotEmpty(t, pending.Token)

	// The pending session resolves, but with the unassigned role.
	principal := f.resolver.Resolve(ctx, pending.Token)
	require.True(t, principal.Authenticated)
	assert.Equal(t, domain.RoleUnassigned, principal.Role)

	outcome, err := f.machine.SelectRole(ctx, principal, "corporate")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, outcome.State)
	assert.Equal(t, domain.RoleCorporate, outcome.Role)
	assert.Equal(t, "/proyectos", outcome.RedirectPath)
	require.NotEmpty(t, outcome.Token)
	assert.NotEqual(t, pending.Token, outcome.Token)

	// The pending session was replaced, not kept alive alongside.
	assert.Equal(t, domain.Anonymous, f.resolver.Resolve(ctx, pending.Token))
	assert.Equal(t, domain.RoleCorporate, f.resolver.Resolve(ctx, outcome.Token).Role)

	require.Len(t, selected, 1)
	assert.Equal(t, domain.RoleCorporate, selected[0].Role)
}

func TestFederatedReturningSubjectKeepsRole(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.federated.ident = domain.SubjectIdentity{SubjectID: "fed-subject-1", Email: "corg@empresa.com"}

	pending, err := f.machine.SubmitFederated(ctx, "auth-code", "nonce-1")
	require.NoError(t, err)
	_, err = f.machine.SelectRole(ctx, f.resolver.Resolve(ctx, pending.Token), "student")
	require.NoError(t, err)

	// Second sign-in goes straight to authenticated with the stored role.
	outcome, err := f.machine.SubmitFederated(ctx, "auth-code-2", "nonce-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, outcome.State)
	assert.Equal(t, domain.RoleStudent, outcome.Role)
	assert.Equal(t, "/students", outcome.RedirectPath)
}

func TestSelectRoleRejectsAdminAndUnknown(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.federated.ident = domain.SubjectIdentity{SubjectID: "fed-subject-1"}

	pending, err := f.machine.SubmitFederated(ctx, "auth-code", "nonce-1")
	require.NoError(t, err)
	principal := f.resolver.Resolve(ctx, pending.Token)

	for _, role := range []string{"admin", "unassigned", "owner", ""} {
		outcome, err := f.machine.SelectRole(ctx, principal, role)
		assert.Error(t, err, "role %q", role)
		assert.Equal(t, domain.StateRejected, outcome.State)
	}

	// The pending session is untouched by rejected selections.
	assert.True(t, f.resolver.Resolve(ctx, pending.Token).Authenticated)
}

func TestSelectRoleOnlyOnce(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.federated.ident = domain.SubjectIdentity{SubjectID: "fed-subject-1"}

	pending, err := f.machine.SubmitFederated(ctx, "auth-code", "nonce-1")
	require.NoError(t, err)
	principal := f.resolver.Resolve(ctx, pending.Token)

	first, err := f.machine.SelectRole(ctx, principal, "student")
	require.NoError(t, err)

	again, err := f.machine.SelectRole(ctx, f.resolver.Resolve(ctx, first.Token), "corporate")
	assert.Error(t, err)
	assert.Equal(t, domain.StateRejected, again.State)

	role, err := f.profiles.GetRole(ctx, "fed-subject-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleStudent, role)
}

func TestOtpFlowLandsInRolePending(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	require.NoError(t, f.machine.RequestOtp(ctx, "+5491122334455", ""))
	require.Len(t, *f.sentCode, 6)

	outcome, err := f.machine.VerifyOtp(ctx, "+5491122334455", *f.sentCode)
	require.NoError(t, err)
	// Phone-only subjects carry no email, so no default role applies.
	assert.Equal(t, domain.StateRolePending, outcome.State)
	assert.Equal(t, domain.RoleUnassigned, outcome.Role)
	require.NotEmpty(t, outcome.Token)
}

func TestOtpWrongCodeRejected(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()

	require.NoError(t, f.machine.RequestOtp(ctx, "+5491122334455", ""))
	wrong := "000000"
	if wrong == *f.sentCode {
		wrong = "000001"
	}

	outcome, err := f.machine.VerifyOtp(ctx, "+5491122334455", wrong)
	assert.Equal(t, apperrors.CodeCredentialMismatch, apperrors.CodeOf(err))
	assert.Equal(t, domain.StateRejected, outcome.State)
	assert.Empty(t, outcome.Token)

	// No profile or session comes out of a failed attempt.
	_, err = f.profiles.GetRole(ctx, "+5491122334455")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignupDomainGateFirstSightOnly(t *testing.T) {
	f := newFixture(t, fixtureOpts{allowedDomains: []string{"uni.edu"}})
	ctx := context.Background()

	f.federated.ident = domain.SubjectIdentity{SubjectID: "outsider", Email: "who@gmail.com"}
	outcome, err := f.machine.SubmitFederated(ctx, "auth-code", "nonce-1")
	assert.Error(t, err)
	assert.Equal(t, domain.StateRejected, outcome.State)
	_, err = f.profiles.GetRole(ctx, "outsider")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// Subjects that already have a profile are not re-gated.
	_, err = f.profiles.EnsureProfile(ctx, "grandfathered", "old@gmail.com", "", domain.RoleStudent)
	require.NoError(t, err)
	f.federated.ident = domain.SubjectIdentity{SubjectID: "grandfathered", Email: "old@gmail.com"}
	outcome, err = f.machine.SubmitFederated(ctx, "auth-code", "nonce-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, outcome.State)
}

func TestFederatedProviderFailure(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.federated.err = apperrors.NewProviderUnavailable(errors.New("exchange failed"))

	outcome, err := f.machine.SubmitFederated(context.Background(), "auth-code", "nonce-1")
	assert.Equal(t, apperrors.CodeProviderUnavailable, apperrors.CodeOf(err))
	assert.Equal(t, domain.StateRejected, outcome.State)
}

func TestCaptchaGate(t *testing.T) {
	f := newFixture(t, fixtureOpts{captcha: &fakeCaptcha{pass: false}})
	ctx := context.Background()
	f.seedStudent(t, "ana@uni.edu", "p1")

	outcome, err := f.machine.SubmitPassword(ctx, "ana@uni.edu", "p1", "bad-token")
	assert.Equal(t, apperrors.CodeInvalidCredentialFormat, apperrors.CodeOf(err))
	assert.Equal(t, domain.StateRejected, outcome.State)

	assert.Error(t, f.machine.RequestOtp(ctx, "+5491122334455", "bad-token"))
}

func TestRenewReplacesSession(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.seedStudent(t, "ana@uni.edu", "p1")

	var renewed []events.Event
	f.dispatcher.Subscribe(events.EventSessionRenewed, func(_ context.Context, e events.Event) error {
		renewed = append(renewed, e)
		return nil
	})

	login, err := f.machine.SubmitPassword(ctx, "ana@uni.edu", "p1", "")
	require.NoError(t, err)
	principal := f.resolver.Resolve(ctx, login.Token)

	outcome, err := f.machine.Renew(ctx, principal)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, outcome.State)
	require.NotEmpty(t, outcome.Token)
	assert.NotEqual(t, login.Token, outcome.Token)

	// The old session is gone, the fresh one resolves.
	assert.Equal(t, domain.Anonymous, f.resolver.Resolve(ctx, login.Token))
	assert.Equal(t, domain.RoleStudent, f.resolver.Resolve(ctx, outcome.Token).Role)
	require.Len(t, renewed, 1)

	_, err = f.machine.Renew(ctx, domain.Anonymous)
	assert.Equal(t, apperrors.CodeUnauthenticated, apperrors.CodeOf(err))
}

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	ctx := context.Background()
	f.seedStudent(t, "ana@uni.edu", "p1")

	var loggedOut []events.Event
	f.dispatcher.Subscribe(events.EventLoggedOut, func(_ context.Context, e events.Event) error {
		loggedOut = append(loggedOut, e)
		return nil
	})

	outcome, err := f.machine.SubmitPassword(ctx, "ana@uni.edu", "p1", "")
	require.NoError(t, err)
	principal := f.resolver.Resolve(ctx, outcome.Token)
	require.True(t, principal.Authenticated)

	require.NoError(t, f.machine.Logout(ctx, principal))
	assert.Equal(t, domain.Anonymous, f.resolver.Resolve(ctx, outcome.Token))
	require.Len(t, loggedOut, 1)

	// Logging out an anonymous principal is a no-op.
	assert.NoError(t, f.machine.Logout(ctx, domain.Anonymous))
}
