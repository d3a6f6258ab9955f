package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/obs"
)

const refreshCookieName = "refresh_token"

// The refresh token only ever travels to the refresh endpoint.
const refreshCookiePath = "/v1/auth"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityResponse struct {
	UserID      string   `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type tokenResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	User        identityResponse `json:"user"`
}

func identityPayload(id auth.Identity) identityResponse {
	return identityResponse{
		UserID:      id.UserID,
		Username:    id.Username,
		Email:       id.Email,
		Roles:       id.Roles,
		Permissions: id.Permissions,
	}
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, "email and password are required", nil)
		return
	}

	pair, identity, err := a.issuer.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown account and wrong password collapse into one answer.
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "invalid credentials", nil)
			return
		}
		writeError(w, r, http.StatusInternalServerError, codeInternal, "login failed", nil)
		return
	}

	obs.Logger().Info().
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("user_id", identity.UserID).
		Strs("roles", identity.Roles).
		Msg("login")

	a.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		User:        identityPayload(identity),
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "missing refresh token", nil)
		return
	}

	pair, identity, err := a.issuer.Refresh(r.Context(), cookie.Value)
	if err != nil {
		a.clearRefreshCookie(w)
		writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "invalid or expired refresh token", nil)
		return
	}

	obs.Logger().Info().
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("user_id", identity.UserID).
		Msg("token refresh")

	a.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		User:        identityPayload(identity),
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
		return
	}
	writeJSON(w, http.StatusOK, identityPayload(identity))
}

func (a *API) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
