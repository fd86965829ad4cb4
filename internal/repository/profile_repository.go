package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f4ntasma/codex/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrRoleAlreadyConcrete is returned when SetRole would silently change
// a finalized role without the admin override.
var ErrRoleAlreadyConcrete = errors.New("role already finalized")

// ProfileRepository is the role store: one row per subject, role
// unassigned until finalized.
type ProfileRepository interface {
	GetRole(ctx context.Context, subjectID string) (domain.Role, error)
	GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error)
	// EnsureProfile is idempotent: it creates the profile with
	// defaultRole on first sight and returns the existing row untouched
	// otherwise, including under concurrent duplicate creation.
	EnsureProfile(ctx context.Context, subjectID, email, displayName string, defaultRole domain.Role) (*domain.Profile, error)
	// SetRole finalizes an unassigned role. adminOverride permits
	// changing an already-concrete role (administrative action only).
	SetRole(ctx context.Context, subjectID string, role domain.Role, adminOverride bool) error
}

type profileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepository{pool: pool}
}

func (r *profileRepository) GetRole(ctx context.Context, subjectID string) (domain.Role, error) {
	const query = `SELECT role FROM profiles WHERE subject_id=$1`

	var role domain.Role
	if err := r.pool.QueryRow(ctx, query, subjectID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

func (r *profileRepository) GetProfile(ctx context.Context, subjectID string) (*domain.Profile, error) {
	const query = `
        SELECT subject_id, email, display_name, role, created_at, updated_at
        FROM profiles WHERE subject_id=$1`

	var profile domain.Profile
	if err := r.pool.QueryRow(ctx, query, subjectID).Scan(
		&profile.SubjectID,
		&profile.Email,
		&profile.DisplayName,
		&profile.Role,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) EnsureProfile(ctx context.Context, subjectID, email, displayName string, defaultRole domain.Role) (*domain.Profile, error) {
	// Keyed on subject_id; a losing concurrent insert falls through to
	// the fetch of the winner's row.
	const insert = `
        INSERT INTO profiles (subject_id, email, display_name, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (subject_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, subjectID, email, displayName, defaultRole); err != nil {
		return nil, err
	}
	return r.GetProfile(ctx, subjectID)
}

func (r *profileRepository) SetRole(ctx context.Context, subjectID string, role domain.Role, adminOverride bool) error {
	query := `UPDATE profiles SET role=$1, updated_at=NOW() WHERE subject_id=$2 AND role=$3`
	args := []any{role, subjectID, domain.RoleUnassigned}
	if adminOverride {
		query = `UPDATE profiles SET role=$1, updated_at=NOW() WHERE subject_id=$2`
		args = args[:2]
	}

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Either no profile, or the role was already concrete.
		if _, err := r.GetRole(ctx, subjectID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrRoleAlreadyConcrete
	}
	return nil
}
