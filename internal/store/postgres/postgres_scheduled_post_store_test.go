package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

var postColumns = []string{
	"id", "user_id", "post_id", "scheduled_time", "platforms", "status",
	"publish_results", "retry_count", "created_at", "updated_at",
}

func TestNewPostgresScheduledPostStore(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	require.NotNil(t, store)
}

func TestPostgresScheduledPostStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	at := time.Now().Add(time.Hour)
	created := time.Now()

	post := &types.ScheduledPost{
		ID:            "sp-1",
		UserID:        "user-1",
		PostID:        "post-1",
		ScheduledTime: at,
		Platforms:     []types.Platform{types.PlatformTwitter, types.PlatformLinkedIn},
		Status:        state.PostPending,
	}

	mock.ExpectQuery("INSERT INTO postfire_schema.scheduled_posts").
		WithArgs("sp-1", "user-1", "post-1", at, pq.Array([]string{"twitter", "linkedin"}), state.PostPending, "[]", 0).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, created))

	err = store.Create(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, created, post.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_Create_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	mock.ExpectQuery("INSERT INTO postfire_schema.scheduled_posts").WillReturnError(sql.ErrConnDone)

	err = store.Create(context.Background(), &types.ScheduledPost{ID: "sp-1"})
	var storeErr *custom_errors.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestPostgresScheduledPostStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(postColumns).AddRow(
		"sp-1", "user-1", "post-1", at, "{twitter,linkedin}", "failed",
		`[{"platform":"twitter","success":true,"publishedId":"t-1","publishedAt":"2026-05-01T09:00:01Z"},
		  {"platform":"linkedin","success":false,"error":"rate limited","failureKind":"transient","publishedAt":"2026-05-01T09:00:01Z"}]`,
		3, at, at,
	)
	mock.ExpectQuery("SELECT (.+) FROM postfire_schema.scheduled_posts WHERE id").
		WithArgs("sp-1").
		WillReturnRows(rows)

	post, err := store.FindByID(context.Background(), "sp-1")
	require.NoError(t, err)
	assert.Equal(t, []types.Platform{types.PlatformTwitter, types.PlatformLinkedIn}, post.Platforms)
	assert.Equal(t, state.PostFailed, post.Status)
	assert.Equal(t, 3, post.RetryCount)
	require.Len(t, post.PublishResults, 2)
	assert.True(t, post.PublishResults[0].Success)
	assert.Equal(t, types.FailureTransient, post.PublishResults[1].FailureKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_FindByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	mock.ExpectQuery("SELECT (.+) FROM postfire_schema.scheduled_posts").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(postColumns))

	_, err = store.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, custom_errors.ErrScheduledPostNotFound)
}

func TestPostgresScheduledPostStore_UpdateSchedule(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	at := time.Now().Add(30 * time.Minute)

	mock.ExpectExec("UPDATE postfire_schema.scheduled_posts").
		WithArgs(at, pq.Array([]string{"facebook"}), "sp-1", state.PostPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.UpdateSchedule(context.Background(), "sp-1", at, []types.Platform{types.PlatformFacebook})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_UpdateSchedule_NotPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)

	mock.ExpectExec("UPDATE postfire_schema.scheduled_posts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.UpdateSchedule(context.Background(), "sp-1", time.Now(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresScheduledPostStore_TransitionStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)

	mock.ExpectExec("UPDATE postfire_schema.scheduled_posts").
		WithArgs(state.PostPublished, sqlmock.AnyArg(), 1, "sp-1", pq.Array([]string{"processing"})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.TransitionStatus(context.Background(), "sp-1",
		[]state.PostStatus{state.PostProcessing},
		types.PostStatusUpdate{
			Status:         state.PostPublished,
			RetryCount:     1,
			PublishResults: []types.PublishResult{{Platform: types.PlatformTwitter, Success: true}},
		})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_TransitionStatus_KeepsResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)

	mock.ExpectExec("UPDATE postfire_schema.scheduled_posts").
		WithArgs(state.PostProcessing, nil, 0, "sp-1", pq.Array([]string{"pending"})).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.TransitionStatus(context.Background(), "sp-1",
		[]state.PostStatus{state.PostPending},
		types.PostStatusUpdate{Status: state.PostProcessing})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_TransitionStatus_NoSource(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	_, err = store.TransitionStatus(context.Background(), "sp-1", nil, types.PostStatusUpdate{})
	assert.Error(t, err)
}

func TestPostgresScheduledPostStore_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	rows := sqlmock.NewRows(postColumns).
		AddRow("sp-1", "user-1", "post-1", from.Add(time.Hour), "{twitter}", "pending", "[]", 0, from, from).
		AddRow("sp-2", "user-1", "post-2", from.Add(2*time.Hour), "{tiktok}", "published", "[]", 0, from, from)

	mock.ExpectQuery(`SELECT (.+) FROM postfire_schema.scheduled_posts WHERE user_id = \$1 AND scheduled_time >= \$2 AND scheduled_time <= \$3`).
		WithArgs("user-1", from, to).
		WillReturnRows(rows)

	posts, err := store.ListByUser(context.Background(), "user-1", types.DateRange{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "sp-1", posts[0].ID)
	assert.Equal(t, state.PostPublished, posts[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresScheduledPostStore_ListByUser_NoRange(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresScheduledPostStore(db)

	mock.ExpectQuery(`WHERE user_id = \$1\s+ORDER BY`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(postColumns))

	posts, err := store.ListByUser(context.Background(), "user-1", types.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
