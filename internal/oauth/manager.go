package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"go-auth-service/internal/model"
)

const (
	googleTokenInfoURL = "https://www.googleapis.com/oauth2/v3/tokeninfo"
	yandexUserInfoURL  = "https://login.yandex.ru/info"
)

type providerConfig struct {
	oauth *oauth2.Config
	// infoURL is the endpoint that maps an access token to the account email.
	infoURL string
}

// Manager holds the auth-code flow configuration for the supported OAuth
// issuers and resolves provider access tokens to verified emails.
type Manager struct {
	providers map[string]*providerConfig
	client    *http.Client
}

func NewManager(redirectBase string, googleID string, googleSecret string, yandexID string, yandexSecret string) *Manager {
	providers := map[string]*providerConfig{}

	if googleID != "" && googleSecret != "" {
		providers[model.ProviderGoogle] = &providerConfig{
			oauth: &oauth2.Config{
				ClientID:     googleID,
				ClientSecret: googleSecret,
				Endpoint:     endpoints.Google,
				RedirectURL:  redirectBase + "/api/v1/auth/google/callback",
				Scopes:       []string{"openid", "email"},
			},
			infoURL: googleTokenInfoURL,
		}
	}

	if yandexID != "" && yandexSecret != "" {
		providers[model.ProviderYandex] = &providerConfig{
			oauth: &oauth2.Config{
				ClientID:     yandexID,
				ClientSecret: yandexSecret,
				Endpoint:     endpoints.Yandex,
				RedirectURL:  redirectBase + "/api/v1/auth/yandex/callback",
				Scopes:       []string{"login:email"},
			},
			infoURL: yandexUserInfoURL,
		}
	}

	return &Manager{
		providers: providers,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (m *Manager) Enabled(provider string) bool {
	_, exists := m.providers[provider]
	return exists
}

func (m *Manager) AuthURL(provider string, state string) (string, error) {
	cfg, exists := m.providers[provider]
	if !exists {
		return "", fmt.Errorf("oauth provider %s is not configured", provider)
	}
	return cfg.oauth.AuthCodeURL(state), nil
}

func (m *Manager) Exchange(ctx context.Context, provider string, code string) (*oauth2.Token, error) {
	cfg, exists := m.providers[provider]
	if !exists {
		return nil, fmt.Errorf("oauth provider %s is not configured", provider)
	}

	token, err := cfg.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s authorization code: %w", provider, err)
	}
	return token, nil
}

// FetchEmail asks the provider which account the access token belongs to.
func (m *Manager) FetchEmail(ctx context.Context, provider string, accessToken string) (string, error) {
	cfg, exists := m.providers[provider]
	if !exists {
		return "", fmt.Errorf("oauth provider %s is not configured", provider)
	}

	infoURL, err := url.Parse(cfg.infoURL)
	if err != nil {
		return "", fmt.Errorf("parse %s info URL: %w", provider, err)
	}

	query := infoURL.Query()
	switch provider {
	case model.ProviderYandex:
		query.Set("format", "json")
		query.Set("oauth_token", accessToken)
	default:
		query.Set("access_token", accessToken)
	}
	infoURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build %s info request: %w", provider, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s account info: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s info endpoint returned status %d", provider, resp.StatusCode)
	}

	var payload struct {
		Email        string `json:"email"`
		DefaultEmail string `json:"default_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode %s account info: %w", provider, err)
	}

	email := payload.Email
	if provider == model.ProviderYandex {
		email = payload.DefaultEmail
	}
	if email == "" {
		return "", fmt.Errorf("%s account info did not include an email", provider)
	}

	return email, nil
}

// StateToken returns a random value to bind an authorization redirect to the
// callback that follows it.
func StateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
