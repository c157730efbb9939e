package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-auth-service/internal/model"
	"go-auth-service/pkg/apierror"
)

const accessTokenScheme = "Bearer "

// TokenStore is the refresh-token persistence contract.
// *repository.TokenRepository satisfies it.
type TokenStore interface {
	FindByToken(ctx context.Context, token string) (model.RefreshToken, error)
	Upsert(ctx context.Context, t model.RefreshToken) (model.RefreshToken, error)
	DeleteByToken(ctx context.Context, token string) error
}

type AuthService struct {
	users      *UserService
	tokens     TokenStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

func NewAuthService(jwtSecret string, accessTTL time.Duration, refreshTTL time.Duration, users *UserService, tokens TokenStore, logger *slog.Logger) (*AuthService, error) {
	if strings.TrimSpace(jwtSecret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}, nil
}

// Register creates a password account. A taken email is a Conflict; storage
// failures keep their cause so callers can tell the two apart.
func (s *AuthService) Register(ctx context.Context, email string, password string) (model.User, error) {
	_, err := s.users.FindByIDOrEmail(ctx, email, false)
	if err == nil {
		return model.User{}, apierror.Conflict("user already registered", email)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("look up user before register: %w", err)
	}

	user, err := s.users.Create(ctx, email, password, "")
	if errors.Is(err, model.ErrUserAlreadyExists) {
		return model.User{}, apierror.Conflict("user already registered", email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and issues a token pair. Unknown email and wrong
// password produce the same error so the response does not reveal which failed.
func (s *AuthService) Login(ctx context.Context, email string, password string, userAgent string) (model.TokenPair, error) {
	user, err := s.users.FindByIDOrEmail(ctx, email, true)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.Unauthorized("invalid email or password")
	}
	if err != nil {
		s.logger.Error("login lookup failed", "error", err)
		return model.TokenPair{}, err
	}

	if !s.users.VerifyPassword(user, password) {
		return model.TokenPair{}, apierror.Unauthorized("invalid email or password")
	}

	return s.issueTokenPair(ctx, user, userAgent)
}

// Refresh consumes a refresh token and issues a replacement pair. The row is
// deleted before the expiry check: a presented token is never reusable, even
// when the refresh itself fails.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, userAgent string) (model.TokenPair, error) {
	token, err := s.tokens.FindByToken(ctx, refreshToken)
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.tokens.DeleteByToken(ctx, refreshToken); err != nil {
		return model.TokenPair{}, fmt.Errorf("consume refresh token: %w", err)
	}

	if token.ExpiresAt.Before(time.Now()) {
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}

	user, err := s.users.FindByIDOrEmail(ctx, token.UserID, false)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, apierror.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	return s.issueTokenPair(ctx, user, userAgent)
}

// Logout drops the refresh token row. An absent token is a no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.tokens.DeleteByToken(ctx, refreshToken)
}

// ProviderAuth signs a user in through an OAuth issuer identified only by the
// email the provider vouched for. An existing account is linked to the
// provider in place; a new one is created without a password.
func (s *AuthService) ProviderAuth(ctx context.Context, email string, userAgent string, provider string) (model.TokenPair, error) {
	existing, err := s.users.FindByIDOrEmail(ctx, email, false)
	if err == nil {
		linked, linkErr := s.users.LinkProvider(ctx, existing.ID, provider)
		if linkErr != nil {
			return model.TokenPair{}, fmt.Errorf("link provider %s: %w", provider, linkErr)
		}
		return s.issueTokenPair(ctx, linked, userAgent)
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.TokenPair{}, fmt.Errorf("look up user before provider auth: %w", err)
	}

	created, err := s.users.Create(ctx, email, "", provider)
	if err != nil {
		s.logger.Error("provider sign-in user creation failed", "provider", provider, "error", err)
		return model.TokenPair{}, apierror.BadRequest("could not create user for provider sign-in", email)
	}

	return s.issueTokenPair(ctx, created, userAgent)
}

// issueTokenPair signs a short-lived access token and upserts the refresh row
// for the (user, device) pair, superseding any prior session on that device.
func (s *AuthService) issueTokenPair(ctx context.Context, user model.User, userAgent string) (model.TokenPair, error) {
	now := time.Now().UTC()

	signed, err := s.signToken(jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"roles": user.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(s.accessTTL).Unix(),
	})
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.tokens.Upsert(ctx, model.RefreshToken{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		UserAgent: userAgent,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	})
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return model.TokenPair{
		AccessToken:  accessTokenScheme + signed,
		RefreshToken: refresh,
	}, nil
}

func (s *AuthService) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateAccessToken parses a bare (unprefixed) access token.
func (s *AuthService) ValidateAccessToken(tokenString string) (*model.AuthClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierror.Unauthorized("invalid token signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthorized("invalid token")
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apierror.Unauthorized("invalid token claims")
	}

	claims := &model.AuthClaims{}
	claims.UserID, _ = claimsMap["id"].(string)
	claims.Email, _ = claimsMap["email"].(string)
	if rawRoles, ok := claimsMap["roles"].([]interface{}); ok {
		for _, raw := range rawRoles {
			if role, ok := raw.(string); ok {
				claims.Roles = append(claims.Roles, role)
			}
		}
	}

	if claims.UserID == "" {
		return nil, apierror.Unauthorized("invalid token subject")
	}

	return claims, nil
}
