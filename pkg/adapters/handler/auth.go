package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/logger"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type AuthHandler struct {
	auth          ports.AuthService
	oauthConfig   *oauth2.Config
	userInfoURL   string
	frontendURL   string
	allowedEmails []string
	accessTTL     time.Duration
	isProduction  bool
}

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func NewAuthHandler(cfg *config.Config, auth ports.AuthService) *AuthHandler {
	allowed := make([]string, 0, len(cfg.Google.AllowedEmails))
	for _, e := range cfg.Google.AllowedEmails {
		allowed = append(allowed, strings.ToLower(strings.TrimSpace(e)))
	}
	return &AuthHandler{
		auth: auth,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL:   googleUserInfoURL,
		frontendURL:   cfg.Google.FrontendURL,
		allowedEmails: allowed,
		accessTTL:     cfg.Auth.AccessTokenTTL,
		isProduction:  cfg.IsProduction(),
	}
}

type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=100"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

type SessionResponse struct {
	ID string `json:"id"`
	domain.TokenPair
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, pair, err := h.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{ID: user.ID, TokenPair: *pair})
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, pair, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{ID: user.ID, TokenPair: *pair})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// SignOut revokes the presented access token and an optional refresh token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var req SignOutRequest
	if r.ContentLength != 0 {
		if err := decodeStrict(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := h.auth.SignOut(r.Context(), presentedToken(r), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	h.clearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrDenied)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := h.generateStateOauthCookie(w)
	url := h.oauthConfig.AuthCodeURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	lg := logger.From(r.Context())

	oauthState, err := r.Cookie("oauthstate")
	if err != nil {
		lg.Warn("oauth_callback_missing_state", slog.String("err", err.Error()))
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	if r.FormValue("state") != oauthState.Value {
		lg.Warn("oauth_callback_state_mismatch")
		writeError(w, r, fmt.Errorf("oauth state: %w", domain.ErrDenied))
		return
	}

	googleUser, err := h.fetchGoogleUser(r.Context(), r.FormValue("code"))
	if err != nil {
		lg.Error("oauth_callback_failed", slog.String("err", err.Error()))
		writeError(w, r, err)
		return
	}

	email := strings.ToLower(googleUser.Email)
	if !googleUser.VerifiedEmail || (len(h.allowedEmails) > 0 && !slices.Contains(h.allowedEmails, email)) {
		lg.Warn("oauth_callback_email_rejected", slog.String("email", email))
		http.Error(w, "Access denied: your email is not in the allowlist", http.StatusForbidden)
		return
	}

	_, pair, err := h.auth.SignInExternal(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The cookie session carries only the access token.
	if err := h.auth.Revoke(r.Context(), pair.RefreshToken); err != nil {
		lg.Warn("oauth_refresh_revoke_failed", slog.String("err", err.Error()))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    pair.AccessToken,
		Expires:  time.Now().Add(h.accessTTL),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	lg.Info("oauth_login_succeeded", slog.String("email", email))
	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchGoogleUser(ctx context.Context, code string) (*GoogleUser, error) {
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	resp, err := h.oauthConfig.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info: status %d", resp.StatusCode)
	}

	var u GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("user info decode: %w", err)
	}
	return &u, nil
}

// Logout revokes the cookie session and returns to the login page.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(authCookie); err == nil && c.Value != "" {
		if err := h.auth.SignOut(r.Context(), c.Value, ""); err != nil {
			logger.From(r.Context()).Warn("logout_revoke_failed", slog.String("err", err.Error()))
		}
	}
	h.clearCookie(w)
	http.Redirect(w, r, h.frontendURL+"/login", http.StatusTemporaryRedirect)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Expires:  time.Now().Add(-1 * time.Hour),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) generateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(20 * time.Minute),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	return state
}
