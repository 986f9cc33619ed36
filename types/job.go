package types

import (
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/postfire/internal/state"
)

type JobType string

const (
	JobTypePublishPost JobType = "publish_post"
)

const DefaultMaxRetries = 3

// Job is a unit of deferred work. ScheduledTime is the due-set score.
type Job struct {
	ID            string          `json:"id"`
	Type          JobType         `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	ScheduledTime time.Time       `json:"scheduledTime"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
	Status        state.JobStatus `json:"status"`
}

// RetriesLeft reports whether another attempt may be scheduled after the current one fails.
func (j Job) RetriesLeft() bool {
	return j.RetryCount < j.MaxRetries
}

// JobRecord is the persisted view of a job with its bookkeeping timestamps.
type JobRecord struct {
	Job         Job             `json:"job"`
	Status      state.JobStatus `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	FailedAt    *time.Time      `json:"failedAt,omitempty"`
	CancelledAt *time.Time      `json:"cancelledAt,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// PublishPostPayload is the payload of a publish_post job.
type PublishPostPayload struct {
	ScheduledPostID string     `json:"scheduledPostId"`
	UserID          string     `json:"userId"`
	PostID          string     `json:"postId"`
	Platforms       []Platform `json:"platforms"`
}

// JobStats holds queue counters for observability.
type JobStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// StaleResult counts the expired claims RequeueStale handed back or failed.
type StaleResult struct {
	Requeued int `json:"requeued"`
	Failed   int `json:"failed"`
}
