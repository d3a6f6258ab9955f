package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth resolves the caller's identity from the Authorization header.
//
// The two failure shapes are deliberately different: no header at all means
// an anonymous caller and the request continues (public reads work without
// an account), while a header carrying a bad token is a terminal 401. A
// presented credential is a claim of identity; a claim that fails
// verification is never silently downgraded to anonymous.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, err.Error(), nil)
			return
		}

		claims, err := a.codec.Parse(token)
		if err != nil {
			// Reason stays in the log; the response body never
			// distinguishes malformed, forged and expired tokens.
			obs.Logger().Debug().
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("reason", authFailureReason(err)).
				Msg("token rejected")
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, "invalid or expired token", nil)
			return
		}

		// Identity comes from the claims alone. No store round-trip here:
		// authority is as of issuance.
		ctx := auth.ContextWithIdentity(r.Context(), claims.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, auth.ErrTokenMalformed):
		return "malformed"
	default:
		return "invalid"
	}
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
