package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/types"
)

// PostgresTokenStore reads access tokens written by the account connection flow.
type PostgresTokenStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{db: db, now: time.Now}
}

func (r *PostgresTokenStore) GetAccessToken(ctx context.Context, userID string, platform types.Platform) (string, time.Time, error) {
	query := `
		SELECT access_token, expires_at
		FROM postfire_schema.platform_tokens
		WHERE user_id = $1 AND platform = $2
	`
	var (
		token     string
		expiresAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&token, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, custom_errors.ErrNotConnected
	}
	if err != nil {
		return "", time.Time{}, custom_errors.NewStoreError("get access token", err)
	}
	if token == "" || !expiresAt.After(r.now()) {
		return "", time.Time{}, custom_errors.ErrNotConnected
	}
	return token, expiresAt, nil
}
