package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:"

// RedisCodeStore keeps one-time codes in Redis with the validity window
// as the key TTL, so expiry needs no sweeper.
type RedisCodeStore struct {
	client *redis.Client
}

// NewRedisCodeStore builds the store.
func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func (s *RedisCodeStore) Put(ctx context.Context, phone, code string, ttl time.Duration) error {
	return s.client.Set(ctx, otpKeyPrefix+phone, code, ttl).Err()
}

func (s *RedisCodeStore) Get(ctx context.Context, phone string) (string, error) {
	code, err := s.client.Get(ctx, otpKeyPrefix+phone).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoCode
		}
		return "", err
	}
	return code, nil
}

func (s *RedisCodeStore) Delete(ctx context.Context, phone string) error {
	return s.client.Del(ctx, otpKeyPrefix+phone).Err()
}

type memoryCode struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore is an in-memory CodeStore for tests and local runs.
type MemoryCodeStore struct {
	mu    sync.Mutex
	codes map[string]memoryCode
	now   func() time.Time
}

// NewMemoryCodeStore builds an empty store.
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{codes: make(map[string]memoryCode), now: time.Now}
}

// SetClock overrides the time source for expiry tests.
func (s *MemoryCodeStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryCodeStore) Put(_ context.Context, phone, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[phone] = memoryCode{code: code, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryCodeStore) Get(_ context.Context, phone string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes[phone]
	if !ok || s.now().After(entry.expiresAt) {
		delete(s.codes, phone)
		return "", ErrNoCode
	}
	return entry.code, nil
}

func (s *MemoryCodeStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.codes, phone)
	return nil
}
