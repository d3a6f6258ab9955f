// Package httpapi is the service's request boundary: authentication,
// rate limiting and the HTTP handlers, composed as one middleware pipeline.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/obs"
	"reelhub.org/internal/quota"
	"reelhub.org/internal/reviews"
)

// ReadyProbe checks the service's backing stores.
type ReadyProbe struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Options wires the API's collaborators.
type Options struct {
	Codec         *auth.Codec
	Issuer        *auth.Issuer
	Reviews       *reviews.Service
	Selector      *quota.Selector
	Quota         quota.Store
	Ready         ReadyProbe
	Version       string
	SecureCookies bool
}

// API is the HTTP layer.
type API struct {
	mux           *http.ServeMux
	codec         *auth.Codec
	issuer        *auth.Issuer
	reviews       *reviews.Service
	selector      *quota.Selector
	quota         quota.Store
	readyProbe    ReadyProbe
	version       string
	secureCookies bool
}

func New(opts Options) *API {
	a := &API{
		mux:           http.NewServeMux(),
		codec:         opts.Codec,
		issuer:        opts.Issuer,
		reviews:       opts.Reviews,
		selector:      opts.Selector,
		quota:         opts.Quota,
		readyProbe:    opts.Ready,
		version:       opts.Version,
		secureCookies: opts.SecureCookies,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/reviews", a.handleReviewsCollection)
	a.mux.HandleFunc("/v1/reviews/", a.handleReviewResource)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found", nil)
	})

	return a
}

// Handler assembles the pipeline. Order is fixed: metrics wrap everything,
// request ids exist before the first log line, and authentication always
// runs before rate limiting so the limiter can key on the verified subject.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, maxRequestBody)
	h = a.withQuota(h)
	h = a.withAuth(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "reelhub-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
