package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

// ScheduledPostStore persists the user-facing scheduled post records.
type ScheduledPostStore interface {
	// Create inserts a new record.
	Create(ctx context.Context, post *types.ScheduledPost) error

	// FindByID returns the record or custom_errors.ErrScheduledPostNotFound.
	FindByID(ctx context.Context, id string) (*types.ScheduledPost, error)

	// UpdateSchedule changes time and platforms of a pending record.
	// It reports false when the record is not pending.
	UpdateSchedule(ctx context.Context, id string, scheduledTime time.Time, platforms []types.Platform) (bool, error)

	// TransitionStatus applies update only when the current status is one of from.
	// It reports whether the row was changed.
	TransitionStatus(ctx context.Context, id string, from []state.PostStatus, update types.PostStatusUpdate) (bool, error)

	// ListByUser returns a user's records ordered by scheduled time.
	ListByUser(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error)
}

// ContentStore is the read-only source of post content.
type ContentStore interface {
	// LoadPostContent returns the content or custom_errors.ErrPostNotFound.
	LoadPostContent(ctx context.Context, postID string) (*types.Content, error)
}

// TokenStore returns currently valid access tokens.
type TokenStore interface {
	// GetAccessToken returns the token and its expiry, or custom_errors.ErrNotConnected.
	GetAccessToken(ctx context.Context, userID string, platform types.Platform) (string, time.Time, error)
}
