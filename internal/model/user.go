package model

import (
	"slices"
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// OAuth issuers a user account can be linked to. An empty provider
// means the account was created with a password.
const (
	ProviderGoogle = "GOOGLE"
	ProviderYandex = "YANDEX"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	Provider     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuthClaims is the payload carried by an access token.
type AuthClaims struct {
	UserID string   `json:"id"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

func (c *AuthClaims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

// TokenPair is what a successful login, refresh or provider sign-in yields.
// AccessToken is already scheme-prefixed ("Bearer ..."); the refresh token
// row carries the expiry the transport layer needs for its cookie.
type TokenPair struct {
	AccessToken  string
	RefreshToken RefreshToken
}

// UserProfile is the outward shape of a user record; password hash and
// provider tag never leave the service.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserProfile(u User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
