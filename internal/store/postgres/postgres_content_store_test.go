package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/types"
)

func TestPostgresContentStore_LoadPostContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresContentStore(db)

	mock.ExpectQuery("SELECT (.+) FROM postfire_schema.posts").
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"text", "image_url", "video_url"}).
			AddRow("hello world", "https://cdn.example.com/a.png", ""))

	content, err := store.LoadPostContent(context.Background(), "post-1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", content.Text)
	assert.True(t, content.HasImage())
	assert.False(t, content.HasVideo())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresContentStore_LoadPostContent_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresContentStore(db)
	mock.ExpectQuery("SELECT (.+) FROM postfire_schema.posts").
		WillReturnRows(sqlmock.NewRows([]string{"text", "image_url", "video_url"}))

	_, err = store.LoadPostContent(context.Background(), "missing")
	assert.ErrorIs(t, err, custom_errors.ErrPostNotFound)
}

func TestPostgresTokenStore_GetAccessToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresTokenStore(db)
	expires := time.Now().Add(time.Hour)

	mock.ExpectQuery("SELECT access_token, expires_at FROM postfire_schema.platform_tokens").
		WithArgs("user-1", types.PlatformTwitter).
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "expires_at"}).AddRow("tok", expires))

	token, exp, err := store.GetAccessToken(context.Background(), "user-1", types.PlatformTwitter)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, expires, exp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTokenStore_GetAccessToken_Expired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresTokenStore(db)
	mock.ExpectQuery("SELECT access_token, expires_at").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "expires_at"}).AddRow("tok", time.Now().Add(-time.Minute)))

	_, _, err = store.GetAccessToken(context.Background(), "user-1", types.PlatformLinkedIn)
	assert.ErrorIs(t, err, custom_errors.ErrNotConnected)
}

func TestPostgresTokenStore_GetAccessToken_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewPostgresTokenStore(db)
	mock.ExpectQuery("SELECT access_token, expires_at").
		WillReturnRows(sqlmock.NewRows([]string{"access_token", "expires_at"}))

	_, _, err = store.GetAccessToken(context.Background(), "user-1", types.PlatformLinkedIn)
	assert.ErrorIs(t, err, custom_errors.ErrNotConnected)
}
