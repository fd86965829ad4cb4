package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/f4ntasma/codex/internal/domain"
)

// Issuer converts a verified identity plus its known role into a
// session with a finite lifetime.
type Issuer struct {
	tokens *TokenManager
	store  Store
}

// NewIssuer builds the issuer.
func NewIssuer(tokens *TokenManager, store Store) *Issuer {
	return &Issuer{tokens: tokens, store: store}
}

// Issue mints a session record and its signed token. The role stored on
// the record is only a snapshot; resolution re-reads the role store.
func (i *Issuer) Issue(ctx context.Context, subjectID string, role domain.Role) (domain.Session, string, error) {
	now := time.Now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		SubjectID: subjectID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.tokens.TTL()),
	}

	token, _, err := i.tokens.Generate(sess.ID, subjectID, now)
	if err != nil {
		return domain.Session{}, "", err
	}
	if err := i.store.Save(ctx, sess); err != nil {
		return domain.Session{}, "", err
	}
	return sess, token, nil
}

// Revoke deletes the session record, invalidating its token before
// natural expiry.
func (i *Issuer) Revoke(ctx context.Context, sessionID string) error {
	return i.store.Delete(ctx, sessionID)
}
