package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/f4ntasma/codex/internal/domain"
)

// MemoryAccountRepository is an in-memory AccountRepository used in
// tests and local development without postgres.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	byID     map[string]*domain.Account
	byEmail  map[string]string
	byPhone  map[string]string
}

// NewMemoryAccountRepository builds an empty store.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{
		byID:    make(map[string]*domain.Account),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	clone := *account
	r.byID[account.ID] = &clone
	if account.Email != "" {
		r.byEmail[account.Email] = account.ID
	}
	if account.Phone != "" {
		r.byPhone[account.Phone] = account.ID
	}
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(r.byID[id])
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(r.byID[r.byEmail[email]])
}

func (r *MemoryAccountRepository) GetByPhone(_ context.Context, phone string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(r.byID[r.byPhone[phone]])
}

func (r *MemoryAccountRepository) EnsureByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	r.mu.Lock()
	if id, ok := r.byPhone[phone]; ok {
		account := r.byID[id]
		r.mu.Unlock()
		clone := *account
		return &clone, nil
	}
	r.mu.Unlock()

	account := &domain.Account{Phone: phone, Status: domain.AccountStatusActive}
	if err := r.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *MemoryAccountRepository) MarkEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	account.EmailVerified = true
	account.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryAccountRepository) lookup(account *domain.Account) (*domain.Account, error) {
	if account == nil {
		return nil, pgx.ErrNoRows
	}
	clone := *account
	return &clone, nil
}

// MemoryProfileRepository is an in-memory role store mirroring the
// postgres semantics, first-sight race included.
type MemoryProfileRepository struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
}

// NewMemoryProfileRepository builds an empty store.
func NewMemoryProfileRepository() *MemoryProfileRepository {
	return &MemoryProfileRepository{profiles: make(map[string]*domain.Profile)}
}

func (r *MemoryProfileRepository) GetRole(_ context.Context, subjectID string) (domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[subjectID]
	if !ok {
		return "", ErrNotFound
	}
	return profile.Role, nil
}

func (r *MemoryProfileRepository) GetProfile(_ context.Context, subjectID string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *profile
	return &clone, nil
}

func (r *MemoryProfileRepository) EnsureProfile(_ context.Context, subjectID, email, displayName string, defaultRole domain.Role) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.profiles[subjectID]; ok {
		clone := *existing
		return &clone, nil
	}

	now := time.Now()
	profile := &domain.Profile{
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: displayName,
		Role:        defaultRole,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.profiles[subjectID] = profile
	clone := *profile
	return &clone, nil
}

func (r *MemoryProfileRepository) SetRole(_ context.Context, subjectID string, role domain.Role, adminOverride bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	profile, ok := r.profiles[subjectID]
	if !ok {
		return ErrNotFound
	}
	if profile.Role.Concrete() && !adminOverride {
		return ErrRoleAlreadyConcrete
	}
	profile.Role = role
	profile.UpdatedAt = time.Now()
	return nil
}
