package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-auth-service/internal/cache"
	"go-auth-service/internal/model"
	"go-auth-service/internal/repository"
	"go-auth-service/pkg/apierror"
)

const testUserAgent = "test-device/1.0"

func newTestAuth(t *testing.T) (*AuthService, *UserService, *repository.UserMemoryRepository, *repository.TokenMemoryRepository) {
	t.Helper()

	userRepo := repository.NewUserMemoryRepository()
	tokenRepo := repository.NewTokenMemoryRepository()
	userService := NewUserService(userRepo, cache.NewNoop(), bcrypt.MinCost)

	authService, err := NewAuthService("test-secret", 15*time.Minute, 30*24*time.Hour, userService, tokenRepo, nil)
	require.NoError(t, err)

	return authService, userService, userRepo, tokenRepo
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	return apiErr.HTTPStatus
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with default role", func(t *testing.T) {
		svc, _, userRepo, _ := newTestAuth(t)

		user, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email)
		assert.Equal(t, []string{model.RoleUser}, user.Roles)
		assert.NotEmpty(t, user.ID)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotEqual(t, "secret123", user.PasswordHash)

		count, err := userRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("duplicate email fails with conflict and keeps first user", func(t *testing.T) {
		svc, _, userRepo, _ := newTestAuth(t)

		first, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice@example.com", "othersecret")
		require.Error(t, err)
		assert.Equal(t, http.StatusConflict, apiStatus(t, err))

		count, err := userRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		stored, err := userRepo.FindByIDOrEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, first.ID, stored.ID)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials yield a token pair", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(pair.AccessToken, "Bearer "))
		assert.NotEmpty(t, strings.TrimPrefix(pair.AccessToken, "Bearer "))
		assert.True(t, pair.RefreshToken.ExpiresAt.After(time.Now()))
		assert.NotEmpty(t, pair.RefreshToken.Token)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		_, unknownErr := svc.Login(ctx, "nobody@example.com", "secret123", testUserAgent)
		require.Error(t, unknownErr)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, unknownErr))

		_, wrongErr := svc.Login(ctx, "alice@example.com", "not-the-password", testUserAgent)
		require.Error(t, wrongErr)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, wrongErr))

		assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	})

	t.Run("provider-only account cannot log in with a password", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.ProviderAuth(ctx, "bob@example.com", testUserAgent, model.ProviderGoogle)
		require.NoError(t, err)

		_, err = svc.Login(ctx, "bob@example.com", "", testUserAgent)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	})

	t.Run("second login from the same device supersedes the first session", func(t *testing.T) {
		svc, _, _, tokenRepo := newTestAuth(t)

		user, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		first, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)
		second, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		assert.NotEqual(t, first.RefreshToken.Token, second.RefreshToken.Token)

		count, err := tokenRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = tokenRepo.FindByToken(ctx, first.RefreshToken.Token)
		assert.ErrorIs(t, err, model.ErrTokenNotFound)

		live, err := tokenRepo.FindByUserDevice(ctx, user.ID, testUserAgent)
		require.NoError(t, err)
		assert.Equal(t, second.RefreshToken.Token, live.Token)
	})

	t.Run("logins from different devices keep separate sessions", func(t *testing.T) {
		svc, _, _, tokenRepo := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "alice@example.com", "secret123", "device-a")
		require.NoError(t, err)
		_, err = svc.Login(ctx, "alice@example.com", "secret123", "device-b")
		require.NoError(t, err)

		count, err := tokenRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates the refresh token", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		refreshed, err := svc.Refresh(ctx, pair.RefreshToken.Token, testUserAgent)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RefreshToken.Token, refreshed.RefreshToken.Token)
		assert.True(t, strings.HasPrefix(refreshed.AccessToken, "Bearer "))
		assert.True(t, refreshed.RefreshToken.ExpiresAt.After(time.Now()))
	})

	t.Run("replaying a consumed token fails", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.RefreshToken.Token, testUserAgent)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, pair.RefreshToken.Token, testUserAgent)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	})

	t.Run("expired token fails and the row is consumed", func(t *testing.T) {
		svc, _, _, tokenRepo := newTestAuth(t)

		user, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		expired := model.RefreshToken{
			Token:     "expired-token",
			UserID:    user.ID,
			UserAgent: testUserAgent,
			ExpiresAt: time.Now().Add(-time.Hour),
			CreatedAt: time.Now().Add(-2 * time.Hour),
		}
		_, err = tokenRepo.Upsert(ctx, expired)
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, expired.Token, testUserAgent)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))

		_, err = tokenRepo.FindByToken(ctx, expired.Token)
		assert.ErrorIs(t, err, model.ErrTokenNotFound)
	})

	t.Run("unknown token fails", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.Refresh(ctx, "never-issued", testUserAgent)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, apiStatus(t, err))
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes the token row", func(t *testing.T) {
		svc, _, _, tokenRepo := newTestAuth(t)

		_, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		require.NoError(t, svc.Logout(ctx, pair.RefreshToken.Token))

		_, err = tokenRepo.FindByToken(ctx, pair.RefreshToken.Token)
		assert.ErrorIs(t, err, model.ErrTokenNotFound)
	})

	t.Run("absent token is a no-op", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		assert.NoError(t, svc.Logout(ctx, "never-issued"))
		assert.NoError(t, svc.Logout(ctx, ""))
	})
}

func TestAuthService_ProviderAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a password-less user on first sign-in", func(t *testing.T) {
		svc, _, userRepo, _ := newTestAuth(t)

		pair, err := svc.ProviderAuth(ctx, "alice@example.com", testUserAgent, model.ProviderGoogle)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(pair.AccessToken, "Bearer "))

		user, err := userRepo.FindByIDOrEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Empty(t, user.PasswordHash)
		assert.Equal(t, model.ProviderGoogle, user.Provider)
	})

	t.Run("repeat sign-in creates exactly one user", func(t *testing.T) {
		svc, _, userRepo, _ := newTestAuth(t)

		first, err := svc.ProviderAuth(ctx, "alice@example.com", testUserAgent, model.ProviderGoogle)
		require.NoError(t, err)
		second, err := svc.ProviderAuth(ctx, "alice@example.com", testUserAgent, model.ProviderGoogle)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(first.AccessToken, "Bearer "))
		assert.True(t, strings.HasPrefix(second.AccessToken, "Bearer "))
		assert.True(t, second.RefreshToken.ExpiresAt.After(time.Now()))

		count, err := userRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("existing password account is linked in place", func(t *testing.T) {
		svc, _, userRepo, _ := newTestAuth(t)

		registered, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)

		_, err = svc.ProviderAuth(ctx, "alice@example.com", testUserAgent, model.ProviderYandex)
		require.NoError(t, err)

		linked, err := userRepo.FindByIDOrEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, linked.ID)
		assert.Equal(t, model.ProviderYandex, linked.Provider)
		assert.NotEmpty(t, linked.PasswordHash)

		count, err := userRepo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken)
	})
}

func TestAuthService_ValidateAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trips identity claims", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		user, err := svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(strings.TrimPrefix(pair.AccessToken, "Bearer "))
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, []string{model.RoleUser}, claims.Roles)
	})

	t.Run("rejects garbage and foreign signatures", func(t *testing.T) {
		svc, _, _, _ := newTestAuth(t)

		_, err := svc.ValidateAccessToken("not-a-jwt")
		assert.Error(t, err)

		other, _, _, _ := newTestAuth(t)
		otherSvc, err := NewAuthService("different-secret", time.Minute, time.Hour, other.users, other.tokens, nil)
		require.NoError(t, err)

		_, err = svc.Register(ctx, "alice@example.com", "secret123")
		require.NoError(t, err)
		pair, err := svc.Login(ctx, "alice@example.com", "secret123", testUserAgent)
		require.NoError(t, err)

		_, err = otherSvc.ValidateAccessToken(strings.TrimPrefix(pair.AccessToken, "Bearer "))
		assert.Error(t, err)
	})
}

func TestAuthService_RequiresSecret(t *testing.T) {
	userService := NewUserService(repository.NewUserMemoryRepository(), cache.NewNoop(), bcrypt.MinCost)

	_, err := NewAuthService("", time.Minute, time.Hour, userService, repository.NewTokenMemoryRepository(), nil)
	assert.Error(t, err)
}
