package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/obs"
	"reelhub.org/internal/reviews"
)

func (a *API) handleReviewsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listReviews(w, r)
	case http.MethodPost:
		a.createReview(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleReviewResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/reviews/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getReview(w, r, id)
	case http.MethodDelete:
		a.deleteReview(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 100 {
			writeError(w, r, http.StatusBadRequest, codeBadRequest, "limit must be between 1 and 100", nil)
			return
		}
		limit = v
	}
	titleID := strings.TrimSpace(r.URL.Query().Get("title_id"))

	items, err := a.reviews.List(r.Context(), titleID, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error", nil)
		return
	}
	if items == nil {
		items = []reviews.Review{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) getReview(w http.ResponseWriter, r *http.Request, id string) {
	review, err := a.reviews.Get(r.Context(), id)
	if err != nil {
		handleReviewError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (a *API) createReview(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeIdentityRequired, "authentication required", nil)
		return
	}
	if !identity.HasPermission(auth.PermReviewsCreate) {
		writeError(w, r, http.StatusForbidden, codeForbidden, "missing permission: "+auth.PermReviewsCreate, nil)
		return
	}

	var in reviews.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
		return
	}

	review, err := a.reviews.Create(r.Context(), identity, in)
	if err != nil {
		handleReviewError(w, r, err)
		return
	}

	obs.Logger().Info().
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("user_id", identity.UserID).
		Str("review_id", review.ID).
		Str("title_id", review.TitleID).
		Msg("review created")

	w.Header().Set("Location", "/v1/reviews/"+review.ID)
	writeJSON(w, http.StatusCreated, review)
}

func (a *API) deleteReview(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeIdentityRequired, "authentication required", nil)
		return
	}
	if err := a.reviews.Delete(r.Context(), identity, id); err != nil {
		handleReviewError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleReviewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reviews.ErrInvalidInput), errors.Is(err, reviews.ErrInvalidRating):
		writeError(w, r, http.StatusBadRequest, codeBadRequest, err.Error(), nil)
	case errors.Is(err, reviews.ErrNotAuthor):
		writeError(w, r, http.StatusForbidden, codeForbidden, "not permitted to remove this review", nil)
	case errors.Is(err, reviews.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, "review not found", nil)
	default:
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error", nil)
	}
}
