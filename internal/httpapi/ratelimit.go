package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/obs"
	"reelhub.org/internal/quota"
)

// withQuota enforces the selected bandwidth policy. It runs after withAuth:
// policy selection and principal derivation need the identity verdict.
func (a *API) withQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, hasIdentity := auth.IdentityFromContext(r.Context())

		sel := a.selector.Select(r.Method, r.URL.Path, hasIdentity)
		if sel.Skip {
			next.ServeHTTP(w, r)
			return
		}

		// Structurally authenticated operations are rejected before the
		// store is touched: an anonymous caller holds no budget to spend.
		if sel.RequireIdentity && !hasIdentity {
			writeError(w, r, http.StatusUnauthorized, codeIdentityRequired,
				"authentication required", nil)
			return
		}

		principal := "user:" + identity.UserID
		if sel.KeyByClientIP || !hasIdentity {
			principal = "ip:" + clientIP(r)
		}
		key := sel.Class + ":" + principal

		dec, err := a.quota.TryConsume(r.Context(), key, sel.Policy, 1)
		if err != nil {
			obs.ObserveQuotaStoreError()
			obs.Logger().Warn().
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("policy", sel.Class).
				Err(err).
				Msg("quota store unavailable")

			if sel.Policy.FailMode == quota.FailOpen {
				obs.ObserveQuotaDecision(sel.Class, "fail_open")
				next.ServeHTTP(w, r)
				return
			}
			obs.ObserveQuotaDecision(sel.Class, "fail_closed")
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(sel.Policy.TokenPeriod()), 10))
			writeError(w, r, http.StatusServiceUnavailable, codeServiceUnavailable,
				"service temporarily unavailable", nil)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(sel.Policy.Capacity, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))

		if !dec.Allowed {
			obs.ObserveQuotaDecision(sel.Class, "denied")
			retry := retryAfterSeconds(dec.RetryAfter)
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			writeError(w, r, http.StatusTooManyRequests, codeRateLimited,
				"rate limit exceeded", map[string]any{
					"policy":              sel.Class,
					"retry_after_seconds": retry,
				})
			return
		}

		obs.ObserveQuotaDecision(sel.Class, "allowed")
		// On a non-full bucket the hint tells pacing clients when the next
		// token lands.
		if dec.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfterSeconds(dec.RetryAfter), 10))
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds converts a duration to whole seconds, rounded up. The
// hint never advertises zero: a client retrying instantly learns nothing.
func retryAfterSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
