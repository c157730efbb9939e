package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"go-auth-service/internal/model"
)

// In-memory store implementations backing tests and local development
// without a PostgreSQL instance. They mirror the pgx repositories' contracts,
// including error semantics.

type UserMemoryRepository struct {
	mu    sync.Mutex
	users map[string]model.User // keyed by id
}

func NewUserMemoryRepository() *UserMemoryRepository {
	return &UserMemoryRepository{users: map[string]model.User{}}
}

func (r *UserMemoryRepository) FindByIDOrEmail(_ context.Context, key string) (model.User, error) {
	key = strings.TrimSpace(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.ID == key || u.Email == key {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r *UserMemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	email = strings.TrimSpace(email)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserMemoryRepository) Create(_ context.Context, u model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email || existing.ID == u.ID {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}

	r.users[u.ID] = u
	return u, nil
}

func (r *UserMemoryRepository) UpdateProvider(_ context.Context, id string, provider string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}

	u.Provider = provider
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *UserMemoryRepository) UpdatePassword(_ context.Context, id string, passwordHash string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u
	return u, nil
}

func (r *UserMemoryRepository) Delete(_ context.Context, id string) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, exists := r.users[id]
	if !exists {
		return model.User{}, model.ErrUserNotFound
	}

	delete(r.users, id)
	return u, nil
}

func (r *UserMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.users), nil
}

type TokenMemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken // keyed by token value
}

func NewTokenMemoryRepository() *TokenMemoryRepository {
	return &TokenMemoryRepository{tokens: map[string]model.RefreshToken{}}
}

func (r *TokenMemoryRepository) FindByToken(_ context.Context, token string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.tokens[token]
	if !exists {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (r *TokenMemoryRepository) FindByUserDevice(_ context.Context, userID string, userAgent string) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.UserID == userID && t.UserAgent == userAgent {
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrTokenNotFound
}

// Upsert replaces any live row for the (user, device) pair, matching the
// unique constraint the SQL schema enforces.
func (r *TokenMemoryRepository) Upsert(_ context.Context, t model.RefreshToken) (model.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, existing := range r.tokens {
		if existing.UserID == t.UserID && existing.UserAgent == t.UserAgent {
			delete(r.tokens, key)
		}
	}

	r.tokens[t.Token] = t
	return t, nil
}

func (r *TokenMemoryRepository) DeleteByToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
	return nil
}

func (r *TokenMemoryRepository) DeleteAllForUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, key)
		}
	}
	return nil
}

func (r *TokenMemoryRepository) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for key, t := range r.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.tokens, key)
			removed++
		}
	}
	return removed, nil
}

func (r *TokenMemoryRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tokens), nil
}
