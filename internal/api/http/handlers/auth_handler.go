package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/f4ntasma/codex/internal/api/dto"
	"github.com/f4ntasma/codex/internal/authz"
	"github.com/f4ntasma/codex/internal/config"
	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/enrollment"
	"github.com/f4ntasma/codex/internal/identity"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

const (
	stateCookie = "fed-state"
	nonceCookie = "fed-nonce"
)

// AuthHandler exposes the login/signup surface.
type AuthHandler struct {
	machine   *enrollment.Machine
	federated identity.FederatedExchanger
	app       config.AppConfig
	auth      config.AuthConfig
}

// NewAuthHandler constructs the handler. federated may be nil when the
// provider is not configured.
func NewAuthHandler(machine *enrollment.Machine, federated identity.FederatedExchanger, app config.AppConfig, auth config.AuthConfig) *AuthHandler {
	return &AuthHandler{machine: machine, federated: federated, app: app, auth: auth}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.PasswordLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	outcome, err := h.machine.SubmitPassword(c.UserContext(), req.Email, req.Password, req.CaptchaToken)
	if err != nil {
		return err
	}
	return h.respondOutcome(c, outcome)
}

// FederatedStart handles GET /auth/federated/start: it binds state and
// nonce to the browser and redirects to the provider.
func (h *AuthHandler) FederatedStart(c *fiber.Ctx) error {
	if h.federated == nil {
		return apperrors.NewProviderUnavailable(nil)
	}
	url, state, nonce, err := h.federated.AuthURL()
	if err != nil {
		return err
	}

	h.setFlowCookie(c, stateCookie, state)
	h.setFlowCookie(c, nonceCookie, nonce)
	return c.Redirect(url, fiber.StatusFound)
}

// FederatedCallback handles GET /auth/federated/callback.
func (h *AuthHandler) FederatedCallback(c *fiber.Ctx) error {
	state := c.Query("state")
	if state == "" || state != c.Cookies(stateCookie) {
		return apperrors.NewUnauthenticated("state mismatch")
	}
	nonce := c.Cookies(nonceCookie)
	h.clearCookie(c, stateCookie)
	h.clearCookie(c, nonceCookie)

	outcome, err := h.machine.SubmitFederated(c.UserContext(), c.Query("code"), nonce)
	if err != nil {
		return err
	}
	return h.respondOutcome(c, outcome)
}

// OtpRequest handles POST /auth/otp/request.
func (h *AuthHandler) OtpRequest(c *fiber.Ctx) error {
	var req dto.OtpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.machine.RequestOtp(c.UserContext(), req.Phone, req.CaptchaToken); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}

// OtpVerify handles POST /auth/otp/verify.
func (h *AuthHandler) OtpVerify(c *fiber.Ctx) error {
	var req dto.OtpVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	outcome, err := h.machine.VerifyOtp(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		return err
	}
	return h.respondOutcome(c, outcome)
}

// SelectRole handles POST /auth/role, the deferred role selection.
func (h *AuthHandler) SelectRole(c *fiber.Ctx) error {
	var req dto.SelectRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	principal := authz.PrincipalFromContext(c)
	outcome, err := h.machine.SelectRole(c.UserContext(), principal, req.Role)
	if err != nil {
		return err
	}
	return h.respondOutcome(c, outcome)
}

// Renew handles POST /auth/renew: it swaps the session for a fresh one.
func (h *AuthHandler) Renew(c *fiber.Ctx) error {
	principal := authz.PrincipalFromContext(c)
	outcome, err := h.machine.Renew(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return h.respondOutcome(c, outcome)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal := authz.PrincipalFromContext(c)
	if err := h.machine.Logout(c.UserContext(), principal); err != nil {
		return err
	}
	h.clearCookie(c, h.auth.CookieName)
	return c.SendStatus(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal := authz.PrincipalFromContext(c)
	if !principal.Authenticated {
		return apperrors.NewUnauthenticated("not logged in")
	}
	return c.JSON(fiber.Map{"data": dto.PrincipalResponse{
		UserID: principal.SubjectID,
		Role:   string(principal.Role),
	}})
}

func (h *AuthHandler) respondOutcome(c *fiber.Ctx, outcome domain.AuthOutcome) error {
	if outcome.Token != "" {
		c.Cookie(&fiber.Cookie{
			Name:     h.auth.CookieName,
			Value:    outcome.Token,
			Expires:  outcome.ExpiresAt,
			Path:     "/",
			HTTPOnly: true,
			Secure:   h.app.SecureCookies(),
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	return c.JSON(fiber.Map{"data": dto.NewAuthOutcomeResponse(outcome)})
}

func (h *AuthHandler) setFlowCookie(c *fiber.Ctx, name, value string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Expires:  time.Now().Add(10 * time.Minute),
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.app.SecureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
		HTTPOnly: true,
		Secure:   h.app.SecureCookies(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
