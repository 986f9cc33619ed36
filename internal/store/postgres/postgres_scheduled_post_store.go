package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

const scheduledPostColumns = `id, user_id, post_id, scheduled_time, platforms, status,
		       publish_results, retry_count, created_at, updated_at`

type PostgresScheduledPostStore struct {
	db *sql.DB
}

func NewPostgresScheduledPostStore(db *sql.DB) *PostgresScheduledPostStore {
	return &PostgresScheduledPostStore{db: db}
}

func (r *PostgresScheduledPostStore) Create(ctx context.Context, post *types.ScheduledPost) error {
	query := `
		INSERT INTO postfire_schema.scheduled_posts
			(id, user_id, post_id, scheduled_time, platforms, status, publish_results, retry_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`

	results, err := marshalResults(post.PublishResults)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query,
		post.ID, post.UserID, post.PostID, post.ScheduledTime,
		pq.Array(platformStrings(post.Platforms)), post.Status, results, post.RetryCount,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return custom_errors.NewStoreError("create scheduled post", err)
	}
	return nil
}

func (r *PostgresScheduledPostStore) FindByID(ctx context.Context, id string) (*types.ScheduledPost, error) {
	query := `SELECT ` + scheduledPostColumns + ` FROM postfire_schema.scheduled_posts WHERE id = $1`

	post, err := scanScheduledPost(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, custom_errors.ErrScheduledPostNotFound
	}
	if err != nil {
		return nil, custom_errors.NewStoreError("find scheduled post", err)
	}
	return post, nil
}

func (r *PostgresScheduledPostStore) UpdateSchedule(ctx context.Context, id string, scheduledTime time.Time, platforms []types.Platform) (bool, error) {
	query := `
	UPDATE postfire_schema.scheduled_posts
	SET scheduled_time = $1, platforms = $2, updated_at = now()
	WHERE id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, scheduledTime, pq.Array(platformStrings(platforms)), id, state.PostPending)
	if err != nil {
		return false, custom_errors.NewStoreError("update schedule", err)
	}
	return affected(res)
}

func (r *PostgresScheduledPostStore) TransitionStatus(ctx context.Context, id string, from []state.PostStatus, update types.PostStatusUpdate) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("at least one source status is required")
	}

	query := `
	UPDATE postfire_schema.scheduled_posts
	SET status = $1,
	    publish_results = COALESCE($2, publish_results),
	    retry_count = $3,
	    updated_at = now()
	WHERE id = $4 AND status = ANY($5)
	`

	var results interface{}
	if update.PublishResults != nil {
		data, err := marshalResults(update.PublishResults)
		if err != nil {
			return false, err
		}
		results = data
	}

	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = s.String()
	}

	res, err := r.db.ExecContext(ctx, query, update.Status, results, update.RetryCount, id, pq.Array(fromStrings))
	if err != nil {
		return false, custom_errors.NewStoreError("transition status", err)
	}
	return affected(res)
}

func (r *PostgresScheduledPostStore) ListByUser(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error) {
	where := "user_id = $1"
	args := []interface{}{userID}
	argIndex := 2

	if dateRange.From != nil {
		where += fmt.Sprintf(" AND scheduled_time >= $%d", argIndex)
		args = append(args, *dateRange.From)
		argIndex++
	}
	if dateRange.To != nil {
		where += fmt.Sprintf(" AND scheduled_time <= $%d", argIndex)
		args = append(args, *dateRange.To)
	}

	query := `SELECT ` + scheduledPostColumns + `
		FROM postfire_schema.scheduled_posts
		WHERE ` + where + `
		ORDER BY scheduled_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, custom_errors.NewStoreError("list scheduled posts", err)
	}
	defer rows.Close()

	posts := make([]types.ScheduledPost, 0)
	for rows.Next() {
		post, err := scanScheduledPost(rows)
		if err != nil {
			return nil, custom_errors.NewStoreError("list scheduled posts", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, custom_errors.NewStoreError("list scheduled posts", err)
	}
	return posts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduledPost(row rowScanner) (*types.ScheduledPost, error) {
	var (
		post      types.ScheduledPost
		platforms []string
		results   []byte
	)
	err := row.Scan(
		&post.ID, &post.UserID, &post.PostID, &post.ScheduledTime, pq.Array(&platforms), &post.Status,
		&results, &post.RetryCount, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.Platforms = make([]types.Platform, len(platforms))
	for i, p := range platforms {
		post.Platforms[i] = types.Platform(p)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &post.PublishResults); err != nil {
			return nil, fmt.Errorf("failed to decode publish results of %s: %w", post.ID, err)
		}
	}
	return &post, nil
}

// marshalResults returns text so lib/pq sends it in text format, which jsonb accepts.
func marshalResults(results []types.PublishResult) (string, error) {
	if results == nil {
		results = []types.PublishResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish results: %w", err)
	}
	return string(data), nil
}

func platformStrings(platforms []types.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = p.String()
	}
	return out
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
