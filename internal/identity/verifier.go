package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/f4ntasma/codex/internal/domain"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// Credential is the tagged union of supported credential kinds. The
// enrollment flow never branches on which backend verified a
// credential, only on the outcome.
type Credential interface {
	Kind() string
}

// PasswordCredential carries an email/password pair.
type PasswordCredential struct {
	Email    string
	Password string
}

func (PasswordCredential) Kind() string { return "password" }

// FederatedCredential carries the provider assertion obtained via
// redirect: the authorization code plus the nonce bound to this
// attempt. Trust is delegated to the provider.
type FederatedCredential struct {
	Code  string
	Nonce string
}

func (FederatedCredential) Kind() string { return "federated" }

// OtpCredential carries a phone number and the submitted one-time code.
type OtpCredential struct {
	Phone string
	Code  string
}

func (OtpCredential) Kind() string { return "otp" }

// Verifier validates a presented credential against its backing
// identity provider and returns a verified subject identity.
type Verifier struct {
	password  *PasswordVerifier
	federated FederatedExchanger
	otp       *OtpService
	logger    *zap.Logger
}

// NewVerifier wires the per-kind verifiers. federated may be nil when
// the OIDC provider is not configured.
func NewVerifier(password *PasswordVerifier, federated FederatedExchanger, otp *OtpService, logger *zap.Logger) *Verifier {
	return &Verifier{password: password, federated: federated, otp: otp, logger: logger}
}

// Verify resolves the credential to a subject identity or a typed
// failure. Timeouts against the backing provider surface as
// PROVIDER_UNAVAILABLE, never as a hang.
func (v *Verifier) Verify(ctx context.Context, cred Credential) (domain.SubjectIdentity, error) {
	var (
		identity domain.SubjectIdentity
		err      error
	)

	switch c := cred.(type) {
	case PasswordCredential:
		identity, err = v.password.Verify(ctx, c)
	case FederatedCredential:
		if v.federated == nil {
			return domain.SubjectIdentity{}, apperrors.NewProviderUnavailable(errors.New("federated provider not configured"))
		}
		identity, err = v.federated.Exchange(ctx, c.Code, c.Nonce)
	case OtpCredential:
		identity, err = v.otp.Verify(ctx, c)
	default:
		return domain.SubjectIdentity{}, apperrors.NewInvalidCredentialFormat(
			fmt.Sprintf("unsupported credential kind %q", cred.Kind()), nil)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = apperrors.NewProviderUnavailable(err)
		}
		v.logger.Debug("credential verification failed",
			zap.String("kind", cred.Kind()),
			zap.String("code", apperrors.CodeOf(err)))
		return domain.SubjectIdentity{}, err
	}
	return identity, nil
}
