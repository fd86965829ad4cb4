package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/repository"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// PasswordVerifier checks email/password credentials against the
// account store.
type PasswordVerifier struct {
	accounts repository.AccountRepository
	limiter  *AttemptLimiter
	logger   *zap.Logger
}

// NewPasswordVerifier builds the verifier. limiter may be nil to
// disable throttling.
func NewPasswordVerifier(accounts repository.AccountRepository, limiter *AttemptLimiter, logger *zap.Logger) *PasswordVerifier {
	return &PasswordVerifier{accounts: accounts, limiter: limiter, logger: logger}
}

// Verify authenticates the credential. An unverified email channel is
// auto-remediated exactly once; a second occurrence surfaces as a
// credential mismatch so the flow always terminates.
func (v *PasswordVerifier) Verify(ctx context.Context, cred PasswordCredential) (domain.SubjectIdentity, error) {
	if err := validatePasswordFormat(cred); err != nil {
		return domain.SubjectIdentity{}, err
	}
	if v.limiter != nil && !v.limiter.Allow("email:"+cred.Email) {
		return domain.SubjectIdentity{}, apperrors.NewRateLimited()
	}
	return v.verify(ctx, cred, true)
}

func (v *PasswordVerifier) verify(ctx context.Context, cred PasswordCredential, allowRemediation bool) (domain.SubjectIdentity, error) {
	account, err := v.accounts.GetByEmail(ctx, strings.TrimSpace(cred.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Same failure as a wrong password: callers must not be
			// able to enumerate accounts.
			v.logger.Debug("login for unknown email")
			return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.SubjectIdentity{}, apperrors.NewProviderUnavailable(err)
		}
		return domain.SubjectIdentity{}, err
	}

	if account.Status != domain.AccountStatusActive {
		return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(cred.Password)) != nil {
		return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
	}

	if !account.EmailVerified {
		if !allowRemediation {
			// Remediation already ran once this attempt; stop here.
			return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
		}
		v.logger.Info("auto-confirming email channel", zap.String("account_id", account.ID))
		if err := v.accounts.MarkEmailVerified(ctx, account.ID); err != nil {
			return domain.SubjectIdentity{}, apperrors.NewUnverifiedContactChannel("email")
		}
		return v.verify(ctx, cred, false)
	}

	return domain.SubjectIdentity{
		SubjectID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}, nil
}

// HashPassword hashes a plaintext password with the given cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func validatePasswordFormat(cred PasswordCredential) error {
	details := map[string]any{}
	if strings.TrimSpace(cred.Email) == "" {
		details["email"] = "required"
	} else if !strings.Contains(cred.Email, "@") {
		details["email"] = "must contain @"
	}
	if cred.Password == "" {
		details["password"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewInvalidCredentialFormat("invalid credential fields", details)
	}
	return nil
}
