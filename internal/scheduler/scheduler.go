package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/gateway"
	"github.com/RezaEskandarii/postfire/internal/lock"
	"github.com/RezaEskandarii/postfire/internal/message_broaker"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/internal/store"
	"github.com/RezaEskandarii/postfire/types"
)

// EventSink receives post lifecycle events. Delivery failures are logged, never returned.
type EventSink interface {
	PublishPostEvent(ctx context.Context, event message_broaker.PostEvent) error
}

// ScheduleRequest asks for a post to be published at ScheduledTime on Platforms.
type ScheduleRequest struct {
	UserID        string
	PostID        string
	ScheduledTime time.Time
	Platforms     []string
}

// Scheduler owns the scheduled post lifecycle and keeps it in step with the job queue.
// Every mutation of one scheduled post runs under its key in the KeyedLocker.
type Scheduler struct {
	jobs       store.JobStore
	posts      store.ScheduledPostStore
	contents   store.ContentStore
	gateway    gateway.PublishGateway
	locker     lock.KeyedLocker
	events     EventSink
	maxRetries int
	lockWait   time.Duration
	now        func() time.Time
	newID      func() string
	log        zerolog.Logger
}

const defaultLockWait = 10 * time.Second

type Option func(*Scheduler)

func WithLocker(l lock.KeyedLocker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithEvents(sink EventSink) Option {
	return func(s *Scheduler) { s.events = sink }
}

func WithMaxRetries(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithLockWait bounds how long an operation waits for a busy scheduled post.
func WithLockWait(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) { s.newID = fn }
}

func NewScheduler(
	jobs store.JobStore,
	posts store.ScheduledPostStore,
	contents store.ContentStore,
	gw gateway.PublishGateway,
	log zerolog.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		jobs:       jobs,
		posts:      posts,
		contents:   contents,
		gateway:    gw,
		locker:     lock.NewLocalKeyedLocker(),
		maxRetries: types.DefaultMaxRetries,
		lockWait:   defaultLockWait,
		now:        time.Now,
		newID:      uuid.NewString,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SchedulePost validates the request and creates the scheduled post and its job under one id.
// Nothing is persisted when validation fails.
func (s *Scheduler) SchedulePost(ctx context.Context, req ScheduleRequest) (string, error) {
	var verr custom_errors.ValidationError

	if strings.TrimSpace(req.UserID) == "" {
		verr.Addf("userId is required")
	}
	if strings.TrimSpace(req.PostID) == "" {
		verr.Addf("postId is required")
	}
	if !req.ScheduledTime.After(s.now()) {
		verr.Addf("scheduledTime must be in the future")
	}
	platforms, err := s.parsePlatforms(req.Platforms, &verr)
	if err != nil {
		return "", err
	}
	if verr.HasError() {
		return "", &verr
	}

	if err := s.validateContent(ctx, req.PostID, platforms, &verr); err != nil {
		return "", err
	}
	if verr.HasError() {
		return "", &verr
	}

	id := s.newID()
	post := &types.ScheduledPost{
		ID:            id,
		UserID:        req.UserID,
		PostID:        req.PostID,
		ScheduledTime: req.ScheduledTime.UTC(),
		Platforms:     platforms,
		Status:        state.PostPending,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return "", err
	}

	job, err := s.buildJob(post, 0)
	if err != nil {
		return "", err
	}
	if _, err := s.jobs.Add(ctx, job); err != nil {
		// the record must not stay pending without a job behind it
		if _, rbErr := s.posts.TransitionStatus(ctx, id, []state.PostStatus{state.PostPending},
			types.PostStatusUpdate{Status: state.PostCancelled}); rbErr != nil {
			s.log.Error().Err(rbErr).Str("scheduled_post_id", id).Msg("failed to roll back scheduled post")
		}
		return "", fmt.Errorf("failed to enqueue scheduled post %s: %w", id, err)
	}

	s.log.Info().
		Str("scheduled_post_id", id).
		Str("user_id", req.UserID).
		Time("scheduled_time", post.ScheduledTime).
		Int("platforms", len(platforms)).
		Msg("post scheduled")
	return id, nil
}

// UpdateScheduledPost changes the time and/or platforms of a pending post and swaps its job in
// one step. If the job cannot be swapped the record is restored and the error returned.
func (s *Scheduler) UpdateScheduledPost(ctx context.Context, id string, change types.ScheduleChange) (*types.ScheduledPost, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer s.unlock(unlock, id)

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status != state.PostPending {
		return nil, invalidState(id, post.Status)
	}

	var verr custom_errors.ValidationError
	newTime := post.ScheduledTime
	if change.ScheduledTime != nil {
		if !change.ScheduledTime.After(s.now()) {
			verr.Addf("scheduledTime must be in the future")
		}
		newTime = change.ScheduledTime.UTC()
	}
	newPlatforms := post.Platforms
	if change.Platforms != nil {
		newPlatforms, err = s.parsePlatforms(change.Platforms, &verr)
		if err != nil {
			return nil, err
		}
	}
	if verr.HasError() {
		return nil, &verr
	}
	if err := s.validateContent(ctx, post.PostID, newPlatforms, &verr); err != nil {
		return nil, err
	}
	if verr.HasError() {
		return nil, &verr
	}

	updated, err := s.posts.UpdateSchedule(ctx, id, newTime, newPlatforms)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, s.currentStateError(ctx, id)
	}

	next := *post
	next.ScheduledTime = newTime
	next.Platforms = newPlatforms

	job, err := s.buildJob(&next, post.RetryCount)
	if err == nil {
		err = s.jobs.Replace(ctx, job)
	}
	if err != nil {
		if _, rbErr := s.posts.UpdateSchedule(ctx, id, post.ScheduledTime, post.Platforms); rbErr != nil {
			s.log.Error().Err(rbErr).Str("scheduled_post_id", id).Msg("failed to restore schedule after job replace failed")
		}
		var invalid *custom_errors.InvalidStateError
		if errors.As(err, &invalid) {
			return nil, invalid
		}
		return nil, fmt.Errorf("failed to reschedule %s: %w", id, err)
	}

	s.log.Info().Str("scheduled_post_id", id).Time("scheduled_time", newTime).Msg("scheduled post updated")
	return s.posts.FindByID(ctx, id)
}

// CancelScheduledPost cancels a pending post and removes its job from the queue.
func (s *Scheduler) CancelScheduledPost(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer s.unlock(unlock, id)

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if post.Status != state.PostPending {
		return invalidState(id, post.Status)
	}

	ok, err := s.posts.TransitionStatus(ctx, id, []state.PostStatus{state.PostPending},
		types.PostStatusUpdate{Status: state.PostCancelled, RetryCount: post.RetryCount})
	if err != nil {
		return err
	}
	if !ok {
		return s.currentStateError(ctx, id)
	}

	removed, err := s.jobs.Cancel(ctx, id)
	if err != nil {
		// the record is cancelled, so Execute discards the job if it is still claimed later
		return fmt.Errorf("scheduled post %s cancelled but its job was not removed: %w", id, err)
	}
	if !removed {
		s.log.Warn().Str("scheduled_post_id", id).Msg("no live job found for cancelled post")
	}

	s.log.Info().Str("scheduled_post_id", id).Msg("scheduled post cancelled")
	return nil
}

func (s *Scheduler) GetScheduledPost(ctx context.Context, id string) (*types.ScheduledPost, error) {
	return s.posts.FindByID(ctx, id)
}

func (s *Scheduler) GetScheduledPosts(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error) {
	return s.posts.ListByUser(ctx, userID, dateRange)
}

func (s *Scheduler) GetStats(ctx context.Context) (types.JobStats, error) {
	return s.jobs.Stats(ctx)
}

// ValidateContent checks a post against each platform without scheduling anything.
func (s *Scheduler) ValidateContent(platforms []types.Platform, content types.Content) map[types.Platform]gateway.ValidationResult {
	out := make(map[types.Platform]gateway.ValidationResult, len(platforms))
	for _, p := range platforms {
		out[p] = s.gateway.ValidateContent(p, content)
	}
	return out
}

func (s *Scheduler) parsePlatforms(names []string, verr *custom_errors.ValidationError) ([]types.Platform, error) {
	if len(names) == 0 {
		verr.Addf("at least one platform is required")
		return nil, nil
	}
	platforms, err := types.ParsePlatforms(names)
	if err != nil {
		verr.Add(err)
		return nil, nil
	}
	return platforms, nil
}

func (s *Scheduler) validateContent(ctx context.Context, postID string, platforms []types.Platform, verr *custom_errors.ValidationError) error {
	content, err := s.contents.LoadPostContent(ctx, postID)
	if errors.Is(err, custom_errors.ErrPostNotFound) {
		verr.Addf("post %s not found", postID)
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range platforms {
		for _, msg := range s.gateway.ValidateContent(p, *content).Errors {
			verr.Addf("%s", msg)
		}
	}
	return nil
}

func (s *Scheduler) buildJob(post *types.ScheduledPost, retryCount int) (types.Job, error) {
	payload, err := json.Marshal(types.PublishPostPayload{
		ScheduledPostID: post.ID,
		UserID:          post.UserID,
		PostID:          post.PostID,
		Platforms:       post.Platforms,
	})
	if err != nil {
		return types.Job{}, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return types.Job{
		ID:            post.ID,
		Type:          types.JobTypePublishPost,
		Payload:       payload,
		ScheduledTime: post.ScheduledTime,
		RetryCount:    retryCount,
		MaxRetries:    s.maxRetries,
		Status:        state.StatusPending,
	}, nil
}

func (s *Scheduler) currentStateError(ctx context.Context, id string) error {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return invalidState(id, post.Status)
}

// lock takes the per-post lock, giving up with lock.ErrLockTimeout after lockWait.
func (s *Scheduler) lock(ctx context.Context, id string) (lock.Unlocker, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	return s.locker.Lock(lockCtx, id)
}

func (s *Scheduler) unlock(unlock lock.Unlocker, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := unlock(ctx); err != nil {
		s.log.Warn().Err(err).Str("scheduled_post_id", id).Msg("failed to release post lock")
	}
}

func (s *Scheduler) emit(ctx context.Context, event message_broaker.PostEvent) {
	if s.events == nil {
		return
	}
	event.OccurredAt = s.now().UTC()
	if err := s.events.PublishPostEvent(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", event.Type).Str("scheduled_post_id", event.ScheduledPostID).Msg("failed to emit event")
	}
}

func invalidState(id string, current state.PostStatus) error {
	return &custom_errors.InvalidStateError{ID: id, Current: current.String(), Expected: state.PostPending.String()}
}
