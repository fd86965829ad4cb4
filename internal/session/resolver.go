package session

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/f4ntasma/codex/internal/domain"
	"github.com/f4ntasma/codex/internal/repository"
)

// Resolver recovers the principal behind an inbound request. It is safe
// to call on every request: one role lookup per call, nothing else.
type Resolver struct {
	tokens   *TokenManager
	store    Store
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

// NewResolver builds the resolver.
func NewResolver(tokens *TokenManager, store Store, profiles repository.ProfileRepository, logger *zap.Logger) *Resolver {
	return &Resolver{tokens: tokens, store: store, profiles: profiles, logger: logger}
}

// ExtractToken picks the session token off a request: Authorization
// bearer header first, then the cookie value; first present wins.
func ExtractToken(authorizationHeader, cookieValue string) string {
	if authorizationHeader != "" {
		parts := strings.SplitN(authorizationHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return cookieValue
}

// Resolve turns a raw token into a principal. Expired, tampered or
// revoked tokens resolve to Anonymous, never to an error. The role is
// re-read from the role store on every call so a promotion or the
// deferred role selection is visible immediately.
func (r *Resolver) Resolve(ctx context.Context, token string) domain.Principal {
	if token == "" {
		return domain.Anonymous
	}

	claims, err := r.tokens.Parse(token)
	if err != nil {
		r.logger.Debug("token rejected", zap.Error(err))
		return domain.Anonymous
	}

	sess, err := r.store.Get(ctx, claims.ID)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			r.logger.Warn("session store lookup failed", zap.Error(err))
		}
		return domain.Anonymous
	}

	role, err := r.profiles.GetRole(ctx, sess.SubjectID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Warn("role lookup failed", zap.Error(err))
		}
		// Profile deleted after issuance: the subject no longer exists
		// for authorization purposes.
		return domain.Anonymous
	}

	return domain.Principal{
		Authenticated: true,
		SubjectID:     sess.SubjectID,
		Role:          role,
		SessionID:     sess.ID,
	}
}
