// Package reviews holds the review domain: validation, authorship rules
// and the storage contract. Transport concerns live in httpapi.
package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelhub.org/internal/auth"
	"reelhub.org/internal/ids"
)

const maxBodyLen = 10_000

// Review is one user's take on one title. Deleted reviews keep their row
// (deleted_at is set) but never leave the store through reads.
type Review struct {
	ID        string    `json:"id"`
	TitleID   string    `json:"title_id"`
	AuthorID  string    `json:"author_id"`
	Rating    int       `json:"rating"` // 1..10
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound      = errors.New("review not found")
	ErrInvalidRating = errors.New("rating must be between 1 and 10")
	ErrInvalidInput  = errors.New("invalid review input")
	ErrNotAuthor     = errors.New("not the review author")
)

// Store is the persistence contract for reviews.
type Store interface {
	Insert(ctx context.Context, r Review) error
	Find(ctx context.Context, id string) (Review, error)
	List(ctx context.Context, titleID string, limit int) ([]Review, error)
	SoftDelete(ctx context.Context, id string) error
}

// CreateInput is the caller-supplied part of a new review.
type CreateInput struct {
	TitleID string `json:"title_id"`
	Rating  int    `json:"rating"`
	Body    string `json:"body"`
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.TitleID) == "" {
		return fmt.Errorf("%w: title_id is required", ErrInvalidInput)
	}
	if in.Rating < 1 || in.Rating > 10 {
		return ErrInvalidRating
	}
	if strings.TrimSpace(in.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidInput)
	}
	if len(in.Body) > maxBodyLen {
		return fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidInput, maxBodyLen)
	}
	return nil
}

// Service applies the domain rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, author auth.Identity, in CreateInput) (Review, error) {
	if err := in.validate(); err != nil {
		return Review{}, err
	}
	now := s.now().UTC()
	r := Review{
		ID:        ids.New(),
		TitleID:   strings.TrimSpace(in.TitleID),
		AuthorID:  author.UserID,
		Rating:    in.Rating,
		Body:      strings.TrimSpace(in.Body),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id string) (Review, error) {
	return s.store.Find(ctx, id)
}

func (s *Service) List(ctx context.Context, titleID string, limit int) ([]Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.List(ctx, titleID, limit)
}

// Delete soft-deletes a review. The author may always remove their own;
// anyone else needs the moderation permission or the admin role.
func (s *Service) Delete(ctx context.Context, requester auth.Identity, id string) error {
	r, err := s.store.Find(ctx, id)
	if err != nil {
		return err
	}
	if !canDelete(requester, r) {
		return ErrNotAuthor
	}
	return s.store.SoftDelete(ctx, id)
}

func canDelete(requester auth.Identity, r Review) bool {
	return r.AuthorID == requester.UserID ||
		requester.HasPermission(auth.PermReviewsModerate) ||
		requester.HasRole(auth.RoleAdmin)
}
