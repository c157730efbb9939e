package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/cache"
	"go-auth-service/internal/model"
)

// UserStore is the persistence contract the user service drives.
// *repository.UserRepository satisfies it.
type UserStore interface {
	FindByIDOrEmail(ctx context.Context, key string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	UpdateProvider(ctx context.Context, id string, provider string) (model.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) (model.User, error)
	Delete(ctx context.Context, id string) (model.User, error)
}

type UserService struct {
	store      UserStore
	cache      cache.UserCache
	bcryptCost int
}

func NewUserService(store UserStore, userCache cache.UserCache, bcryptCost int) *UserService {
	if userCache == nil {
		userCache = cache.NewNoop()
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}

	return &UserService{store: store, cache: userCache, bcryptCost: bcryptCost}
}

// FindByIDOrEmail reads through the cache keyed by the lookup string.
// bypassCache drops the cached entry first so the caller sees fresh state.
func (s *UserService) FindByIDOrEmail(ctx context.Context, key string, bypassCache bool) (model.User, error) {
	if bypassCache {
		s.cache.Delete(key)
	} else if u, ok := s.cache.Get(key); ok {
		return u, nil
	}

	u, err := s.store.FindByIDOrEmail(ctx, key)
	if err != nil {
		return model.User{}, err
	}

	s.cache.Set(key, u)
	return u, nil
}

// Create hashes the password when one is given (provider-only accounts have
// none) and persists the user with the default USER role.
func (s *UserService) Create(ctx context.Context, email string, password string, provider string) (model.User, error) {
	hash := ""
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
		if err != nil {
			return model.User{}, fmt.Errorf("hash password: %w", err)
		}
		hash = string(hashed)
	}

	now := time.Now().UTC()
	return s.store.Create(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{model.RoleUser},
		Provider:     provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

// LinkProvider tags an existing account with an OAuth issuer in place.
func (s *UserService) LinkProvider(ctx context.Context, id string, provider string) (model.User, error) {
	u, err := s.store.UpdateProvider(ctx, id, provider)
	if err != nil {
		return model.User{}, err
	}

	s.invalidate(u)
	return u, nil
}

func (s *UserService) UpdatePassword(ctx context.Context, id string, password string) (model.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.store.UpdatePassword(ctx, id, string(hashed))
	if err != nil {
		return model.User{}, err
	}

	s.invalidate(u)
	return u, nil
}

// Delete removes a user. Only the user themselves or an ADMIN may do it.
func (s *UserService) Delete(ctx context.Context, id string, requester *model.AuthClaims) (string, error) {
	if requester == nil || (requester.UserID != id && !requester.HasRole(model.RoleAdmin)) {
		return "", model.ErrForbidden
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return "", err
	}

	s.invalidate(deleted)
	return deleted.ID, nil
}

// Mutations drop both cache keys a user may be cached under.
func (s *UserService) invalidate(u model.User) {
	s.cache.Delete(u.ID)
	s.cache.Delete(u.Email)
}

func (s *UserService) VerifyPassword(u model.User, password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
