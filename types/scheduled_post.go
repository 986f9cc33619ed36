package types

import (
	"time"

	"github.com/RezaEskandarii/postfire/internal/state"
)

// Content is the material published to a platform.
type Content struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`
}

func (c Content) HasImage() bool { return c.ImageURL != "" }
func (c Content) HasVideo() bool { return c.VideoURL != "" }
func (c Content) HasMedia() bool { return c.HasImage() || c.HasVideo() }

type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureAuth       FailureKind = "auth"
	FailureTransient  FailureKind = "transient"
	FailureUnknown    FailureKind = "unknown"
)

// PublishResult is the immutable outcome of one platform attempt.
type PublishResult struct {
	Platform    Platform    `json:"platform"`
	Success     bool        `json:"success"`
	PublishedID string      `json:"publishedId,omitempty"`
	Error       string      `json:"error,omitempty"`
	FailureKind FailureKind `json:"failureKind,omitempty"`
	PublishedAt time.Time   `json:"publishedAt"`
}

type ScheduledPost struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	PostID         string           `json:"postId"`
	ScheduledTime  time.Time        `json:"scheduledTime"`
	Platforms      []Platform       `json:"platforms"`
	Status         state.PostStatus `json:"status"`
	PublishResults []PublishResult  `json:"publishResults"`
	RetryCount     int              `json:"retryCount"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// AllSucceeded reports whether results cover at least one platform and every one succeeded.
func AllSucceeded(results []PublishResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// PostStatusUpdate carries the fields changed by a status transition.
type PostStatusUpdate struct {
	Status         state.PostStatus
	PublishResults []PublishResult
	RetryCount     int
}

// ScheduleChange lists the optional fields of an update request.
type ScheduleChange struct {
	ScheduledTime *time.Time
	Platforms     []string
}

// DateRange filters scheduled posts by scheduled time. Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}
