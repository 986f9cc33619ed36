package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

const (
	defaultCompletedRetention = 24 * time.Hour
	defaultCancelledRetention = 24 * time.Hour
)

// jobDefinition is the immutable part of a job kept in the "data" field of its hash.
// Mutable fields live in their own hash fields so scripts can update them without decoding JSON.
type jobDefinition struct {
	ID      string          `json:"id"`
	Type    types.JobType   `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type RedisJobStore struct {
	client             redis.UniversalClient
	prefix             string
	completedRetention time.Duration
	cancelledRetention time.Duration
	now                func() time.Time
}

type Option func(*RedisJobStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *RedisJobStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithCompletedRetention(d time.Duration) Option {
	return func(s *RedisJobStore) {
		if d > 0 {
			s.completedRetention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *RedisJobStore) {
		s.now = now
	}
}

func NewRedisJobStore(client redis.UniversalClient, opts ...Option) *RedisJobStore {
	s := &RedisJobStore{
		client:             client,
		prefix:             "postfire",
		completedRetention: defaultCompletedRetention,
		cancelledRetention: defaultCancelledRetention,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every key shares the {prefix} hash tag, so scripts that derive job keys from ids stay in one
// Cluster slot.
func (s *RedisJobStore) base() string            { return "{" + s.prefix + "}" }
func (s *RedisJobStore) jobKeyPrefix() string    { return s.base() + ":job:" }
func (s *RedisJobStore) jobKey(id string) string { return s.jobKeyPrefix() + id }
func (s *RedisJobStore) dueKey() string          { return s.base() + ":due" }
func (s *RedisJobStore) processingKey() string   { return s.base() + ":processing" }
func (s *RedisJobStore) failedKey() string       { return s.base() + ":failed" }
func (s *RedisJobStore) completedKey() string    { return s.base() + ":completed" }

func (s *RedisJobStore) Add(ctx context.Context, job types.Job) (string, error) {
	if job.ID == "" {
		return "", errors.New("job id is required")
	}
	data, err := encodeDefinition(job)
	if err != nil {
		return "", err
	}

	added, err := addScript.Run(ctx, s.client,
		[]string{s.jobKey(job.ID), s.dueKey()},
		job.ID, data, toMillis(job.ScheduledTime), job.RetryCount, job.MaxRetries, toMillis(s.now()),
	).Int()
	if err != nil {
		return "", custom_errors.NewStoreError("add", err)
	}
	if added == 0 {
		return "", &custom_errors.DuplicateJobError{JobID: job.ID}
	}
	return job.ID, nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*types.JobRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, custom_errors.NewStoreError("get", err)
	}
	if len(fields) == 0 {
		return nil, custom_errors.ErrJobNotFound
	}

	job, err := decodeJob(id, fields["data"], fields["scheduledAt"], fields["retryCount"], fields["maxRetries"])
	if err != nil {
		return nil, err
	}
	job.Status = state.JobStatus(fields["status"])

	record := &types.JobRecord{
		Job:         job,
		Status:      job.Status,
		CreatedAt:   parseMillis(fields["createdAt"]),
		ProcessedAt: optionalMillis(fields["processedAt"]),
		CompletedAt: optionalMillis(fields["completedAt"]),
		FailedAt:    optionalMillis(fields["failedAt"]),
		CancelledAt: optionalMillis(fields["cancelledAt"]),
		LastError:   fields["lastError"],
	}
	if r := fields["result"]; r != "" {
		record.Result = json.RawMessage(r)
	}
	return record, nil
}

func (s *RedisJobStore) ClaimDue(ctx context.Context, limit int) ([]types.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := claimScript.Run(ctx, s.client,
		[]string{s.dueKey(), s.processingKey()},
		toMillis(s.now()), limit, s.jobKeyPrefix(),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, custom_errors.NewStoreError("claim", err)
	}

	jobs := make([]types.Job, 0, len(raw))
	for _, item := range raw {
		row, ok := item.([]interface{})
		if !ok || len(row) < 5 {
			continue
		}
		job, err := decodeJob(str(row[0]), str(row[1]), str(row[2]), str(row[3]), str(row[4]))
		if err != nil {
			return jobs, err
		}
		job.Status = state.StatusProcessing
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *RedisJobStore) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	if result == nil {
		result = json.RawMessage("null")
	}
	done, err := completeScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.processingKey(), s.completedKey()},
		id, toMillis(s.now()), string(result), s.completedRetention.Milliseconds(),
	).Int()
	if err != nil {
		return false, custom_errors.NewStoreError("complete", err)
	}
	return done == 1, nil
}

// FailWithRetry returns nil without error when the job was no longer being processed.
func (s *RedisJobStore) FailWithRetry(ctx context.Context, id string, errMsg string) (*types.Job, error) {
	return s.fail(ctx, id, errMsg, false)
}

func (s *RedisJobStore) FailPermanently(ctx context.Context, id string, errMsg string) (*types.Job, error) {
	return s.fail(ctx, id, errMsg, true)
}

func (s *RedisJobStore) fail(ctx context.Context, id, errMsg string, permanent bool) (*types.Job, error) {
	flag := "0"
	if permanent {
		flag = "1"
	}
	row, err := failScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.processingKey(), s.dueKey(), s.failedKey()},
		id, toMillis(s.now()), errMsg, flag,
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, custom_errors.NewStoreError("fail", err)
	}
	if len(row) < 5 {
		return nil, custom_errors.NewStoreError("fail", fmt.Errorf("unexpected reply for job %s", id))
	}

	job, err := decodeJob(id, str(row[0]), str(row[1]), str(row[2]), str(row[3]))
	if err != nil {
		return nil, err
	}
	job.Status = state.JobStatus(str(row[4]))
	return &job, nil
}

func (s *RedisJobStore) Cancel(ctx context.Context, id string) (bool, error) {
	n, err := cancelScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.dueKey(), s.processingKey()},
		id, toMillis(s.now()), s.cancelledRetention.Milliseconds(),
	).Int()
	if err != nil {
		return false, custom_errors.NewStoreError("cancel", err)
	}
	return n == 1, nil
}

func (s *RedisJobStore) Replace(ctx context.Context, job types.Job) error {
	data, err := encodeDefinition(job)
	if err != nil {
		return err
	}
	reply, err := replaceScript.Run(ctx, s.client,
		[]string{s.jobKey(job.ID), s.dueKey()},
		job.ID, data, toMillis(job.ScheduledTime), job.RetryCount, job.MaxRetries,
	).Text()
	if err != nil {
		return custom_errors.NewStoreError("replace", err)
	}

	switch reply {
	case "ok":
		return nil
	case "missing":
		return custom_errors.ErrJobNotFound
	default:
		return &custom_errors.InvalidStateError{ID: job.ID, Current: reply, Expected: state.StatusPending.String()}
	}
}

// Release hands a processing job back to the due set at now, keeping its retry count.
func (s *RedisJobStore) Release(ctx context.Context, id string, errMsg string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client,
		[]string{s.jobKey(id), s.processingKey(), s.dueKey()},
		id, toMillis(s.now()), errMsg,
	).Int()
	if err != nil {
		return false, custom_errors.NewStoreError("release", err)
	}
	return n == 1, nil
}

func (s *RedisJobStore) RequeueStale(ctx context.Context, olderThan time.Time) (types.StaleResult, error) {
	counts, err := requeueStaleScript.Run(ctx, s.client,
		[]string{s.processingKey(), s.dueKey(), s.failedKey()},
		toMillis(olderThan), s.jobKeyPrefix(), toMillis(s.now()),
	).Int64Slice()
	if err != nil {
		return types.StaleResult{}, custom_errors.NewStoreError("requeue stale", err)
	}
	if len(counts) != 2 {
		return types.StaleResult{}, custom_errors.NewStoreError("requeue stale", fmt.Errorf("unexpected reply %v", counts))
	}
	return types.StaleResult{Requeued: int(counts[0]), Failed: int(counts[1])}, nil
}

func (s *RedisJobStore) PurgeFailed(ctx context.Context, olderThan time.Time) (int, error) {
	completedBefore := s.now().Add(-s.completedRetention)
	n, err := purgeScript.Run(ctx, s.client,
		[]string{s.failedKey(), s.completedKey()},
		toMillis(olderThan), toMillis(completedBefore), s.jobKeyPrefix(),
	).Int()
	if err != nil {
		return 0, custom_errors.NewStoreError("purge", err)
	}
	return n, nil
}

func (s *RedisJobStore) Stats(ctx context.Context) (types.JobStats, error) {
	pipe := s.client.Pipeline()
	pending := pipe.ZCard(ctx, s.dueKey())
	processing := pipe.ZCard(ctx, s.processingKey())
	completed := pipe.ZCard(ctx, s.completedKey())
	failed := pipe.ZCard(ctx, s.failedKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return types.JobStats{}, custom_errors.NewStoreError("stats", err)
	}
	return types.JobStats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Completed:  completed.Val(),
		Failed:     failed.Val(),
	}, nil
}

func encodeDefinition(job types.Job) (string, error) {
	payload := job.Payload
	if payload == nil {
		payload = json.RawMessage("null")
	}
	data, err := json.Marshal(jobDefinition{ID: job.ID, Type: job.Type, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}
	return string(data), nil
}

func decodeJob(id, data, scheduledAt, retryCount, maxRetries string) (types.Job, error) {
	var def jobDefinition
	if err := json.Unmarshal([]byte(data), &def); err != nil {
		return types.Job{}, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	rc, _ := strconv.Atoi(retryCount)
	mx, _ := strconv.Atoi(maxRetries)
	return types.Job{
		ID:            id,
		Type:          def.Type,
		Payload:       def.Payload,
		ScheduledTime: parseMillis(scheduledAt),
		RetryCount:    rc,
		MaxRetries:    mx,
	}, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// parseMillis accepts float notation since Lua arithmetic produces numbers, not integers.
func parseMillis(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.Time{}
}

func optionalMillis(v string) *time.Time {
	if v == "" {
		return nil
	}
	t := parseMillis(v)
	return &t
}

func str(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
