package handler

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"go-auth-service/internal/model"
	"go-auth-service/internal/oauth"
	"go-auth-service/internal/service"
	"go-auth-service/pkg/apierror"
)

const (
	refreshTokenCookie = "refresh_token"
	oauthStateCookie   = "oauth_state"
	minPasswordLength  = 6
)

type AuthHandler struct {
	service       *service.AuthService
	oauth         *oauth.Manager
	secureCookies bool
}

func NewAuthHandler(authService *service.AuthService, oauthManager *oauth.Manager, secureCookies bool) *AuthHandler {
	return &AuthHandler{service: authService, oauth: oauthManager, secureCookies: secureCookies}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if err := validateRegistration(payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, model.NewUserProfile(user))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		writeError(w, apierror.BadRequest("email and password are required", ""))
		return
	}

	pair, err := h.service.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password, r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeSuccess(w, http.StatusCreated, model.TokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		writeError(w, apierror.Unauthorized("refresh token is missing"))
		return
	}

	pair, err := h.service.Refresh(r.Context(), cookie.Value, r.UserAgent())
	if err != nil {
		h.clearRefreshCookie(w)
		writeError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeSuccess(w, http.StatusCreated, model.TokenResponse{AccessToken: pair.AccessToken})
}

// Logout deletes the presented refresh token. Logging out without a token is
// not an error.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err == nil && strings.TrimSpace(cookie.Value) != "" {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}

	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	h.redirectToProvider(w, r, model.ProviderGoogle)
}

func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	h.providerCallback(w, r, model.ProviderGoogle)
}

func (h *AuthHandler) YandexAuth(w http.ResponseWriter, r *http.Request) {
	h.redirectToProvider(w, r, model.ProviderYandex)
}

func (h *AuthHandler) YandexCallback(w http.ResponseWriter, r *http.Request) {
	h.providerCallback(w, r, model.ProviderYandex)
}

func (h *AuthHandler) redirectToProvider(w http.ResponseWriter, r *http.Request, provider string) {
	if !h.oauth.Enabled(provider) {
		writeError(w, apierror.BadRequest("oauth provider is not configured", provider))
		return
	}

	state, err := oauth.StateToken()
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	authURL, err := h.oauth.AuthURL(provider, state)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *AuthHandler) providerCallback(w http.ResponseWriter, r *http.Request, provider string) {
	if !h.oauth.Enabled(provider) {
		writeError(w, apierror.BadRequest("oauth provider is not configured", provider))
		return
	}

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		writeError(w, apierror.Unauthorized("oauth state mismatch"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apierror.BadRequest("authorization code is missing", provider))
		return
	}

	token, err := h.oauth.Exchange(r.Context(), provider, code)
	if err != nil {
		writeError(w, apierror.Unauthorized("oauth code exchange failed"))
		return
	}

	email, err := h.oauth.FetchEmail(r.Context(), provider, token.AccessToken)
	if err != nil {
		writeError(w, apierror.Unauthorized("could not resolve provider account email"))
		return
	}

	pair, err := h.service.ProviderAuth(r.Context(), email, r.UserAgent(), provider)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	writeSuccess(w, http.StatusCreated, model.TokenResponse{AccessToken: pair.AccessToken})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token model.RefreshToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token.Token,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func validateRegistration(payload model.RegisterRequest) error {
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		return apierror.BadRequest("email is required", "email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apierror.BadRequest("email is not valid", "email")
	}
	if len(payload.Password) < minPasswordLength {
		return apierror.BadRequest("password must be at least 6 characters", "password")
	}
	if payload.Password != payload.PasswordRepeat {
		return apierror.BadRequest("passwords do not match", "password_repeat")
	}

	return nil
}
