package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/postfire/types"
)

// JobStore defines the persistent, time-ordered job queue.
// Every operation that touches more than one index is atomic with respect to the others.
type JobStore interface {
	// Add persists the job and inserts it into the due set.
	// Returns *custom_errors.DuplicateJobError if the id already exists.
	Add(ctx context.Context, job types.Job) (string, error)

	// Get returns the stored record of a job, or custom_errors.ErrJobNotFound.
	Get(ctx context.Context, id string) (*types.JobRecord, error)

	// ClaimDue moves up to limit jobs with ScheduledTime <= now from the due set to the
	// processing set, ordered by ScheduledTime then id. No two callers receive the same job.
	ClaimDue(ctx context.Context, limit int) ([]types.Job, error)

	// Complete marks a processing job completed and stores its result with bounded retention.
	// It reports false when the job was no longer being processed (cancelled in flight).
	Complete(ctx context.Context, id string, result json.RawMessage) (bool, error)

	// FailWithRetry re-queues a processing job at now + 2^(retryCount+1) minutes while retries
	// remain, otherwise moves it to the failed set. The returned job reflects the new state.
	FailWithRetry(ctx context.Context, id string, errMsg string) (*types.Job, error)

	// FailPermanently moves a processing job to the failed set without rescheduling.
	FailPermanently(ctx context.Context, id string, errMsg string) (*types.Job, error)

	// Cancel removes a pending or processing job from the due and processing sets and marks it
	// cancelled. Returns false when the job does not exist or is already terminal.
	Cancel(ctx context.Context, id string) (bool, error)

	// Replace swaps a pending job for a new definition with the same id in one step.
	// Returns *custom_errors.InvalidStateError when the job is not pending.
	Replace(ctx context.Context, job types.Job) error

	// Release returns a processing job to the due set at now without spending a retry, for
	// attempts that settled nothing. It reports false when the job was no longer processing.
	Release(ctx context.Context, id string, errMsg string) (bool, error)

	// RequeueStale returns jobs claimed before olderThan to the due set, spending one retry each.
	// Jobs without retries left move to the failed set instead.
	RequeueStale(ctx context.Context, olderThan time.Time) (types.StaleResult, error)

	// PurgeFailed deletes failed job records that failed before olderThan, and drops
	// completed index entries past their retention.
	PurgeFailed(ctx context.Context, olderThan time.Time) (int, error)

	Stats(ctx context.Context) (types.JobStats, error)
}
