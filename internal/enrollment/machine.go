package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/events"
	"github.com/f4ntasma/codex/internal/identity"
	"github.com/f4ntasma/codex/internal/observability"
	"github.com/f4ntasma/codex/internal/repository"
	"github.com/f4ntasma/codex/internal/session"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// Machine orchestrates the login/signup flow: credential verification,
// first-sight profile creation, deferred role selection and session
// issuance. It holds no per-attempt state, so an abandoned submission
// leaves nothing behind and the next one starts from anonymous.
type Machine struct {
	verifier       *identity.Verifier
	otp            *identity.OtpService
	captcha        identity.CaptchaVerifier
	profiles       repository.ProfileRepository
	issuer         *session.Issuer
	dispatcher     events.Dispatcher
	metrics        *observability.Metrics
	logger         *zap.Logger
	allowedDomains []string
}

// Dependencies bundles what the machine needs.
type Dependencies struct {
	Verifier       *identity.Verifier
	Otp            *identity.OtpService
	Captcha        identity.CaptchaVerifier
	Profiles       repository.ProfileRepository
	Issuer         *session.Issuer
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	AllowedDomains []string
}

// NewMachine builds the state machine.
func NewMachine(deps Dependencies) *Machine {
	return &Machine{
		verifier:       deps.Verifier,
		otp:            deps.Otp,
		captcha:        deps.Captcha,
		profiles:       deps.Profiles,
		issuer:         deps.Issuer,
		dispatcher:     deps.Dispatcher,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		allowedDomains: deps.AllowedDomains,
	}
}

// SubmitPassword runs the password credential flow.
func (m *Machine) SubmitPassword(ctx context.Context, email, password, captchaToken string) (domain.AuthOutcome, error) {
	if err := m.checkCaptcha(ctx, captchaToken); err != nil {
		return m.rejected("password", err)
	}

	ident, err := m.verifier.Verify(ctx, identity.PasswordCredential{Email: email, Password: password})
	if err != nil {
		return m.rejected("password", err)
	}
	return m.finalize(ctx, "password", ident, DefaultRoleFor(ident.Email))
}

// SubmitFederated completes the OAuth redirect callback. Federated
// sign-in carries no role declaration, so a first-time subject always
// lands in role-pending.
func (m *Machine) SubmitFederated(ctx context.Context, code, nonce string) (domain.AuthOutcome, error) {
	ident, err := m.verifier.Verify(ctx, identity.FederatedCredential{Code: code, Nonce: nonce})
	if err != nil {
		return m.rejected("federated", err)
	}
	return m.finalize(ctx, "federated", ident, domain.RoleUnassigned)
}

// RequestOtp dispatches a one-time code to the phone.
func (m *Machine) RequestOtp(ctx context.Context, phone, captchaToken string) error {
	if err := m.checkCaptcha(ctx, captchaToken); err != nil {
		return err
	}
	if err := m.otp.RequestCode(ctx, phone); err != nil {
		return err
	}
	m.metrics.RecordOtpIssued()
	return nil
}

// VerifyOtp runs the phone one-time-code flow.
func (m *Machine) VerifyOtp(ctx context.Context, phone, code string) (domain.AuthOutcome, error) {
	ident, err := m.verifier.Verify(ctx, identity.OtpCredential{Phone: phone, Code: code})
	if err != nil {
		return m.rejected("otp", err)
	}
	return m.finalize(ctx, "otp", ident, DefaultRoleFor(ident.Email))
}

// SelectRole finalizes a pending role and re-issues the session so the
// snapshot is current. Only valid while the subject's role is
// unassigned; self-selection of admin is never allowed.
func (m *Machine) SelectRole(ctx context.Context, principal domain.Principal, roleStr string) (domain.AuthOutcome, error) {
	role, ok := domain.ParseRole(roleStr)
	if !ok || (role != domain.RoleStudent && role != domain.RoleCorporate) {
		err := apperrors.NewValidationError("role must be student or corporate", map[string]any{"role": roleStr})
		return m.rejected("select_role", err)
	}

	if err := m.profiles.SetRole(ctx, principal.SubjectID, role, false); err != nil {
		if errors.Is(err, repository.ErrRoleAlreadyConcrete) {
			return m.rejected("select_role", apperrors.NewValidationError("role already selected", nil))
		}
		if errors.Is(err, repository.ErrNotFound) {
			return m.rejected("select_role", apperrors.NewProfileMissing(principal.SubjectID))
		}
		return domain.AuthOutcome{}, err
	}

	// Replace the session so its snapshot carries the concrete role.
	if principal.SessionID != "" {
		if err := m.issuer.Revoke(ctx, principal.SessionID); err != nil {
			m.logger.Warn("failed to revoke pending session", zap.Error(err))
		}
	}
	sess, token, err := m.issuer.Issue(ctx, principal.SubjectID, role)
	if err != nil {
		return domain.AuthOutcome{}, err
	}

	m.publish(ctx, events.EventRoleSelected, principal.SubjectID, role, sess.ID)
	m.metrics.RecordLogin("select_role", "authenticated")
	return domain.AuthOutcome{
		State:        domain.StateAuthenticated,
		Role:         role,
		RedirectPath: RedirectPathFor(role),
		SubjectID:    principal.SubjectID,
		Token:        token,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Renew replaces the current session with a fresh one, restarting the
// lifetime. The role on the new snapshot is the principal's current
// role, which the resolver already re-read from the role store.
func (m *Machine) Renew(ctx context.Context, principal domain.Principal) (domain.AuthOutcome, error) {
	if !principal.Authenticated {
		return domain.AuthOutcome{}, apperrors.NewUnauthenticated("authentication required")
	}

	if err := m.issuer.Revoke(ctx, principal.SessionID); err != nil {
		m.logger.Warn("failed to revoke session on renewal", zap.Error(err))
	}
	sess, token, err := m.issuer.Issue(ctx, principal.SubjectID, principal.Role)
	if err != nil {
		return domain.AuthOutcome{}, err
	}

	m.publish(ctx, events.EventSessionRenewed, principal.SubjectID, principal.Role, sess.ID)

	state := domain.StateAuthenticated
	redirect := RedirectPathFor(principal.Role)
	if !principal.Role.Concrete() {
		state = domain.StateRolePending
		redirect = ""
	}
	return domain.AuthOutcome{
		State:        state,
		Role:         principal.Role,
		RedirectPath: redirect,
		SubjectID:    principal.SubjectID,
		Token:        token,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// Logout revokes the current session.
func (m *Machine) Logout(ctx context.Context, principal domain.Principal) error {
	if !principal.Authenticated {
		return nil
	}
	if err := m.issuer.Revoke(ctx, principal.SessionID); err != nil {
		return err
	}
	m.publish(ctx, events.EventLoggedOut, principal.SubjectID, principal.Role, principal.SessionID)
	return nil
}

func (m *Machine) finalize(ctx context.Context, kind string, ident domain.SubjectIdentity, defaultRole domain.Role) (domain.AuthOutcome, error) {
	firstSight := false
	if _, err := m.profiles.GetRole(ctx, ident.SubjectID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return domain.AuthOutcome{}, err
		}
		firstSight = true
	}

	if firstSight && ident.Email != "" && !DomainAllowed(ident.Email, m.allowedDomains) {
		err := apperrors.NewValidationError("email domain not allowed for signup", map[string]any{"email": "domain"})
		return m.rejected(kind, err)
	}

	profile, err := m.profiles.EnsureProfile(ctx, ident.SubjectID, ident.Email, ident.DisplayName, defaultRole)
	if err != nil {
		return domain.AuthOutcome{}, err
	}

	sess, token, err := m.issuer.Issue(ctx, profile.SubjectID, profile.Role)
	if err != nil {
		return domain.AuthOutcome{}, err
	}

	if !profile.Role.Concrete() {
		m.metrics.RecordLogin(kind, "role_pending")
		return domain.AuthOutcome{
			State:     domain.StateRolePending,
			Role:      domain.RoleUnassigned,
			SubjectID: profile.SubjectID,
			Token:     token,
			ExpiresAt: sess.ExpiresAt,
		}, nil
	}

	m.publish(ctx, events.EventLoggedIn, profile.SubjectID, profile.Role, sess.ID)
	m.metrics.RecordLogin(kind, "authenticated")
	return domain.AuthOutcome{
		State:        domain.StateAuthenticated,
		Role:         profile.Role,
		RedirectPath: RedirectPathFor(profile.Role),
		SubjectID:    profile.SubjectID,
		Token:        token,
		ExpiresAt:    sess.ExpiresAt,
	}, nil
}

// rejected builds the terminal rejection outcome and passes the typed
// error through for rendering.
func (m *Machine) rejected(kind string, err error) (domain.AuthOutcome, error) {
	code := apperrors.CodeOf(err)
	m.metrics.RecordLogin(kind, "rejected")
	m.logger.Info("enrollment rejected", zap.String("kind", kind), zap.String("code", code))
	return domain.AuthOutcome{State: domain.StateRejected, Reason: code}, err
}

func (m *Machine) checkCaptcha(ctx context.Context, token string) error {
	if m.captcha == nil || !m.captcha.Enabled() {
		return nil
	}
	return m.captcha.VerifyToken(ctx, token)
}

func (m *Machine) publish(ctx context.Context, eventType events.EventType, subjectID string, role domain.Role, sessionID string) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Role:      role,
		SessionID: sessionID,
		Timestamp: time.Now(),
	})
}
