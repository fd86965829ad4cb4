package dto

import (
	"time"

	"github.com/f4ntasma/codex/internal/domain"
)

// PasswordLoginRequest payload for password sign-in.
type PasswordLoginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

// OtpRequest payload to request a one-time code.
type OtpRequest struct {
	Phone        string `json:"phone"`
	CaptchaToken string `json:"captcha_token,omitempty"`
}

// OtpVerifyRequest payload to redeem a one-time code.
type OtpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// SelectRoleRequest payload for deferred role selection.
type SelectRoleRequest struct {
	Role string `json:"role"`
}

// AuthOutcomeResponse is the uniform response for every enrollment
// action that can authenticate.
type AuthOutcomeResponse struct {
	State        string    `json:"state"`
	Role         string    `json:"role,omitempty"`
	RedirectPath string    `json:"redirect_path,omitempty"`
	Token        string    `json:"token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// NewAuthOutcomeResponse maps the domain outcome.
func NewAuthOutcomeResponse(outcome domain.AuthOutcome) AuthOutcomeResponse {
	return AuthOutcomeResponse{
		State:        string(outcome.State),
		Role:         string(outcome.Role),
		RedirectPath: outcome.RedirectPath,
		Token:        outcome.Token,
		ExpiresAt:    outcome.ExpiresAt,
	}
}

// PrincipalResponse describes the resolved caller, the exact pair the
// showcase features consume.
type PrincipalResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
