package reviews

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore persists reviews in Postgres over database/sql.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const reviewColumns = `id, title_id, author_id, rating, body, created_at, updated_at`

func (s *PGStore) Insert(ctx context.Context, r Review) error {
	_, err := s.db.ExecContext(ctx, `
		insert into reviews(id, title_id, author_id, rating, body, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, r.ID, r.TitleID, r.AuthorID, r.Rating, r.Body, r.CreatedAt, r.UpdatedAt)
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (Review, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+reviewColumns+`
		from reviews
		where id=$1 and deleted_at is null
	`, id)
	return scanReview(row)
}

func (s *PGStore) List(ctx context.Context, titleID string, limit int) ([]Review, error) {
	query := `
		select ` + reviewColumns + `
		from reviews
		where deleted_at is null
	`
	args := []any{limit}
	if titleID != "" {
		query += ` and title_id=$2`
		args = append(args, titleID)
	}
	query += ` order by created_at desc limit $1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PGStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update reviews set deleted_at=now(), updated_at=now()
		where id=$1 and deleted_at is null
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (Review, error) {
	var r Review
	err := row.Scan(&r.ID, &r.TitleID, &r.AuthorID, &r.Rating, &r.Body, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	if err != nil {
		return Review{}, err
	}
	return r, nil
}
