package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/f4ntasma/codex/internal/config"
	"github.com/f4ntasma/codex/internal/domain"
	apperrors "github.com/f4ntasma/codex/pkg/util"
)

// FederatedExchanger abstracts the federated identity provider so the
// verifier and tests do not depend on a live OIDC endpoint.
type FederatedExchanger interface {
	// AuthURL returns the provider redirect URL plus the state and
	// nonce bound to this attempt.
	AuthURL() (url, state, nonce string, err error)
	// Exchange redeems the authorization code and returns the verified
	// subject identity.
	Exchange(ctx context.Context, code, nonce string) (domain.SubjectIdentity, error)
}

// OIDCExchanger implements FederatedExchanger with go-oidc discovery,
// code exchange and ID-token verification.
type OIDCExchanger struct {
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	timeout  time.Duration
}

// NewOIDCExchanger discovers the provider and prepares the OAuth2
// configuration.
func NewOIDCExchanger(ctx context.Context, cfg config.FederatedConfig) (*OIDCExchanger, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("federated client credentials required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("federated issuer URL required")
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout()}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	provider, err := gooidc.NewProvider(ctx, strings.TrimSuffix(cfg.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	return &OIDCExchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       strings.Fields(cfg.Scopes),
			Endpoint:     provider.Endpoint(),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		timeout:  cfg.ProviderTimeout(),
	}, nil
}

func (e *OIDCExchanger) AuthURL() (string, string, string, error) {
	state, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	url := e.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return url, state, nonce, nil
}

func (e *OIDCExchanger) Exchange(ctx context.Context, code, nonce string) (domain.SubjectIdentity, error) {
	if code == "" {
		return domain.SubjectIdentity{}, apperrors.NewInvalidCredentialFormat("authorization code required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	token, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		return domain.SubjectIdentity{}, apperrors.NewProviderUnavailable(err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return domain.SubjectIdentity{}, apperrors.NewProviderUnavailable(errors.New("token response missing id_token"))
	}

	idToken, err := e.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
	}
	if nonce != "" && idToken.Nonce != nonce {
		return domain.SubjectIdentity{}, apperrors.NewCredentialMismatch()
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return domain.SubjectIdentity{}, fmt.Errorf("parse id token claims: %w", err)
	}

	return domain.SubjectIdentity{
		SubjectID:   idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
