package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/types"
)

// PostgresContentStore reads post bodies authored elsewhere in the product.
type PostgresContentStore struct {
	db *sql.DB
}

func NewPostgresContentStore(db *sql.DB) *PostgresContentStore {
	return &PostgresContentStore{db: db}
}

func (r *PostgresContentStore) LoadPostContent(ctx context.Context, postID string) (*types.Content, error) {
	query := `
		SELECT text, COALESCE(image_url, ''), COALESCE(video_url, '')
		FROM postfire_schema.posts
		WHERE id = $1
	`
	var c types.Content
	err := r.db.QueryRowContext(ctx, query, postID).Scan(&c.Text, &c.ImageURL, &c.VideoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, custom_errors.ErrPostNotFound
	}
	if err != nil {
		return nil, custom_errors.NewStoreError("load post content", err)
	}
	return &c, nil
}
