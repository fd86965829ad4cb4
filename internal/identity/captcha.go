package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/f4ntasma/codex/internal/config"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// CaptchaVerifier gates credential submission behind a human
// verification token when enabled.
type CaptchaVerifier interface {
	VerifyToken(ctx context.Context, token string) error
	Enabled() bool
}

// HCaptchaVerifier checks tokens against the hCaptcha siteverify
// endpoint.
type HCaptchaVerifier struct {
	cfg    config.CaptchaConfig
	client *http.Client
}

// NewHCaptchaVerifier builds the verifier with a bounded-timeout client.
func NewHCaptchaVerifier(cfg config.CaptchaConfig) *HCaptchaVerifier {
	return &HCaptchaVerifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HCaptchaVerifier) Enabled() bool {
	return v.cfg.Enabled && v.cfg.Secret != ""
}

// VerifyToken posts the token to siteverify. Any transport failure is
// treated as the verification service being unavailable, not as a pass.
func (v *HCaptchaVerifier) VerifyToken(ctx context.Context, token string) error {
	if !v.Enabled() {
		return nil
	}
	if token == "" {
		return apperrors.NewInvalidCredentialFormat("captcha token required", map[string]any{"captcha_token": "required"})
	}

	form := url.Values{}
	form.Set("response", token)
	form.Set("secret", v.cfg.Secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.NewProviderUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return apperrors.NewProviderUnavailable(err)
	}
	defer resp.Body.Close()

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return apperrors.NewProviderUnavailable(err)
	}
	if !result.Success {
		return apperrors.NewInvalidCredentialFormat("captcha verification failed",
			map[string]any{"captcha": strings.Join(result.ErrorCodes, ", ")})
	}
	return nil
}
