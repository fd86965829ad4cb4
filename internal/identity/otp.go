package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/repository"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// e164 matches the international phone format the OTP flow requires
// before any code is generated.
var e164 = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ErrNoCode is returned by a CodeStore when no live code exists for the
// phone.
var ErrNoCode = errors.New("no active code")

// CodeStore holds the most recently issued code per phone within its
// validity window.
type CodeStore interface {
	Put(ctx context.Context, phone, code string, ttl time.Duration) error
	Get(ctx context.Context, phone string) (string, error)
	Delete(ctx context.Context, phone string) error
}

// CodeSender dispatches an issued code out of band. SMS delivery is an
// external concern; the default sender only logs.
type CodeSender func(ctx context.Context, phone, code string) error

// OtpService implements the phone one-time-code credential flow.
type OtpService struct {
	codes    CodeStore
	accounts repository.AccountRepository
	sender   CodeSender
	limiter  *AttemptLimiter
	ttl      time.Duration
	logger   *zap.Logger
}

// NewOtpService builds the service. sender may be nil; limiter may be
// nil to disable throttling.
func NewOtpService(codes CodeStore, accounts repository.AccountRepository, sender CodeSender, limiter *AttemptLimiter, ttl time.Duration, logger *zap.Logger) *OtpService {
	svc := &OtpService{codes: codes, accounts: accounts, sender: sender, limiter: limiter, ttl: ttl, logger: logger}
	if svc.sender == nil {
		svc.sender = func(_ context.Context, phone, code string) error {
			logger.Debug("otp issued", zap.String("phone", phone))
			return nil
		}
	}
	return svc
}

// RequestCode validates the phone, generates a fresh 6-digit code and
// dispatches it. A newer code always supersedes the previous one.
func (s *OtpService) RequestCode(ctx context.Context, phone string) error {
	if !e164.MatchString(phone) {
		return apperrors.NewInvalidCredentialFormat("phone must be E.164", map[string]any{"phone": "invalid"})
	}
	if s.limiter != nil && !s.limiter.Allow("phone:"+phone) {
		return apperrors.NewRateLimited()
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.codes.Put(ctx, phone, code, s.ttl); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.NewProviderUnavailable(err)
		}
		return err
	}
	return s.sender(ctx, phone, code)
}

// Verify checks the submitted code against the live one for the phone.
// Codes are single use: a successful match consumes the code.
func (s *OtpService) Verify(ctx context.Context, cred OtpCredential) (domain.SubjectIdentity, error) {
	if !e164.MatchString(cred.Phone) {
		return domain.SubjectIdentity{}, apperrors.NewInvalidCredentialFormat("phone must be E.164", map[string]any{"phone": "invalid"})
	}
	if cred.Code == "" {
		return domain.SubjectIdentity{}, apperrors.NewInvalidCredentialFormat("code required", map[string]any{"code": "required"})
	}

	stored, err := s.codes.Get(ctx, cred.Phone)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			// Expired or never issued: same answer as a wrong code.
			return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.SubjectIdentity{}, apperrors.NewProviderUnavailable(err)
		}
		return domain.SubjectIdentity{}, err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(cred.Code)) != 1 {
		return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
	}
	if err := s.codes.Delete(ctx, cred.Phone); err != nil {
		s.logger.Warn("failed to consume otp code", zap.Error(err))
	}

	account, err := s.accounts.EnsureByPhone(ctx, cred.Phone)
	if err != nil {
		return domain.SubjectIdentity{}, err
	}
	return domain.SubjectIdentity{
		SubjectID:   account.ID,
		Email:       account.Email,
		DisplayName: account.DisplayName,
	}, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
