package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/f4ntasma/codex/internal/domain"
)

// AccountRepository defines persistence access for credential accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Account, error)
	// EnsureByPhone returns the account for the phone, creating a bare
	// one on first sight.
	EnsureByPhone(ctx context.Context, phone string) (*domain.Account, error)
	MarkEmailVerified(ctx context.Context, id string) error
}

type accountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(pool *pgxpool.Pool) AccountRepository {
	return &accountRepository{pool: pool}
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (email, phone, display_name, password_hash, email_verified, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		account.Email,
		nullable(account.Phone),
		account.DisplayName,
		account.PasswordHash,
		account.EmailVerified,
		account.Status,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, `WHERE id=$1`, id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.getOne(ctx, `WHERE email=$1`, email)
}

func (r *accountRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	return r.getOne(ctx, `WHERE phone=$1`, phone)
}

func (r *accountRepository) EnsureByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	// ON CONFLICT DO NOTHING so a duplicate first-sight race falls
	// through to the fetch instead of erroring.
	const insert = `
        INSERT INTO accounts (email, phone, display_name, password_hash, email_verified, status)
        VALUES ('', $1, '', '', FALSE, $2)
        ON CONFLICT (phone) WHERE phone IS NOT NULL DO NOTHING`

	if _, err := r.pool.Exec(ctx, insert, phone, domain.AccountStatusActive); err != nil {
		return nil, err
	}
	return r.GetByPhone(ctx, phone)
}

func (r *accountRepository) MarkEmailVerified(ctx context.Context, id string) error {
	const query = `UPDATE accounts SET email_verified=TRUE, updated_at=NOW() WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) getOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	query := `
        SELECT id, email, COALESCE(phone, ''), display_name, password_hash, email_verified, status, created_at, updated_at
        FROM accounts ` + where

	var account domain.Account
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&account.ID,
		&account.Email,
		&account.Phone,
		&account.DisplayName,
		&account.PasswordHash,
		&account.EmailVerified,
		&account.Status,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
