package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/constants"
	"github.com/RezaEskandarii/postfire/internal/message_broaker"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

// Execute publishes a claimed publish_post job and records the outcome on both the scheduled post
// and the job. Per-platform failures never escape; a returned error means a store failed or the
// post stayed locked, nothing was settled, and the dispatcher releases the job for the next tick.
//
// A post cancelled before its job was claimed is discarded here. Cancellation is refused once the
// post is processing, so a publish that has started always runs to completion.
func (s *Scheduler) Execute(ctx context.Context, job types.Job) error {
	log := s.log.With().Str("job_id", job.ID).Int("retry_count", job.RetryCount).Logger()

	var payload types.PublishPostPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil || payload.ScheduledPostID == "" {
		log.Error().Err(err).Msg("undecodable publish payload")
		_, ferr := s.jobs.FailPermanently(ctx, job.ID, "invalid publish_post payload")
		return ferr
	}
	log = log.With().Str("scheduled_post_id", payload.ScheduledPostID).Logger()

	unlock, err := s.lock(ctx, payload.ScheduledPostID)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", payload.ScheduledPostID, err)
	}
	defer s.unlock(unlock, payload.ScheduledPostID)

	post, err := s.posts.FindByID(ctx, payload.ScheduledPostID)
	if errors.Is(err, custom_errors.ErrScheduledPostNotFound) {
		log.Warn().Msg("scheduled post no longer exists")
		_, ferr := s.jobs.FailPermanently(ctx, job.ID, "scheduled post not found")
		return ferr
	}
	if err != nil {
		return err
	}

	if post.Status.IsTerminal() {
		return s.discard(ctx, log, job, post.Status)
	}

	// the compare-and-set loses to a cancel that landed after the claim
	ok, err := s.posts.TransitionStatus(ctx, post.ID,
		[]state.PostStatus{state.PostPending, state.PostProcessing},
		types.PostStatusUpdate{Status: state.PostProcessing, RetryCount: post.RetryCount})
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.posts.FindByID(ctx, post.ID)
		if err != nil {
			return err
		}
		return s.discard(ctx, log, job, current.Status)
	}

	remaining := pendingPlatforms(post)
	var results []types.PublishResult

	content, err := s.contents.LoadPostContent(ctx, post.PostID)
	switch {
	case errors.Is(err, custom_errors.ErrPostNotFound):
		results = make([]types.PublishResult, len(remaining))
		for i, p := range remaining {
			results[i] = types.PublishResult{
				Platform: p, Error: "post content not found", FailureKind: types.FailureValidation, PublishedAt: s.now(),
			}
		}
	case err != nil:
		return err
	default:
		results = s.gateway.PublishToAll(ctx, post.UserID, remaining, *content)
	}

	merged := mergeResults(post, results)
	for _, r := range results {
		if r.Success {
			log.Debug().Str("platform", r.Platform.String()).Msg("platform published")
			continue
		}
		log.Warn().
			Str("platform", r.Platform.String()).
			Str("failure", string(r.FailureKind)).
			Str("error", r.Error).
			Msg("platform attempt failed")
	}

	switch {
	case types.AllSucceeded(merged):
		return s.markPublished(ctx, log, job, post, merged)
	case onlyValidationFailures(results) || !job.RetriesLeft():
		return s.markFailed(ctx, log, job, post, merged, summarize(results))
	default:
		return s.requeue(ctx, log, job, post, merged, summarize(results))
	}
}

func (s *Scheduler) markPublished(ctx context.Context, log zerolog.Logger, job types.Job, post *types.ScheduledPost, results []types.PublishResult) error {
	ok, err := s.posts.TransitionStatus(ctx, post.ID, []state.PostStatus{state.PostProcessing},
		types.PostStatusUpdate{Status: state.PostPublished, PublishResults: results, RetryCount: job.RetryCount})
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Msg("scheduled post changed while publishing, result discarded")
		return nil
	}

	body, _ := json.Marshal(results)
	done, err := s.jobs.Complete(ctx, job.ID, body)
	if err != nil {
		return err
	}
	if !done {
		log.Warn().Msg("job was cancelled while in flight")
	}

	log.Info().Int("platforms", len(results)).Msg("post published")
	s.emit(ctx, message_broaker.PostEvent{
		Type: constants.EventPostPublished, ScheduledPostID: post.ID, UserID: post.UserID, PostID: post.PostID,
		Status: state.PostPublished.String(), RetryCount: job.RetryCount, Results: results,
	})
	return nil
}

func (s *Scheduler) markFailed(ctx context.Context, log zerolog.Logger, job types.Job, post *types.ScheduledPost, results []types.PublishResult, reason string) error {
	ok, err := s.posts.TransitionStatus(ctx, post.ID, []state.PostStatus{state.PostProcessing},
		types.PostStatusUpdate{Status: state.PostFailed, PublishResults: results, RetryCount: job.RetryCount})
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Msg("scheduled post changed while publishing, result discarded")
		return nil
	}

	if job.RetriesLeft() {
		_, err = s.jobs.FailPermanently(ctx, job.ID, reason)
	} else {
		_, err = s.jobs.FailWithRetry(ctx, job.ID, reason)
	}
	if err != nil {
		return err
	}

	log.Error().Str("reason", reason).Msg("post failed")
	s.emit(ctx, message_broaker.PostEvent{
		Type: constants.EventPostFailed, ScheduledPostID: post.ID, UserID: post.UserID, PostID: post.PostID,
		Status: state.PostFailed.String(), RetryCount: job.RetryCount, Results: results,
	})
	return nil
}

func (s *Scheduler) requeue(ctx context.Context, log zerolog.Logger, job types.Job, post *types.ScheduledPost, results []types.PublishResult, reason string) error {
	ok, err := s.posts.TransitionStatus(ctx, post.ID, []state.PostStatus{state.PostProcessing},
		types.PostStatusUpdate{Status: state.PostPending, PublishResults: results, RetryCount: job.RetryCount + 1})
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Msg("scheduled post changed while publishing, result discarded")
		return nil
	}

	next, err := s.jobs.FailWithRetry(ctx, job.ID, reason)
	if err != nil {
		return err
	}
	if next == nil {
		log.Warn().Msg("job was cancelled while in flight")
		return nil
	}

	log.Warn().Time("next_attempt", next.ScheduledTime).Str("reason", reason).Msg("publish retry scheduled")
	at := next.ScheduledTime
	s.emit(ctx, message_broaker.PostEvent{
		Type: constants.EventPostRetryScheduled, ScheduledPostID: post.ID, UserID: post.UserID, PostID: post.PostID,
		Status: state.PostPending.String(), RetryCount: next.RetryCount, NextAttemptAt: &at, Results: results,
	})
	return nil
}

// discard settles a claimed job whose post already left the pending/processing states.
func (s *Scheduler) discard(ctx context.Context, log zerolog.Logger, job types.Job, status state.PostStatus) error {
	log.Info().Str("status", status.String()).Msg("scheduled post is not publishable, job discarded")

	var err error
	switch status {
	case state.PostPublished:
		_, err = s.jobs.Complete(ctx, job.ID, nil)
	case state.PostFailed:
		_, err = s.jobs.FailPermanently(ctx, job.ID, "scheduled post already failed")
	default:
		_, err = s.jobs.Cancel(ctx, job.ID)
	}
	return err
}

// pendingPlatforms lists the platforms without a successful result from an earlier attempt.
func pendingPlatforms(post *types.ScheduledPost) []types.Platform {
	done := make(map[types.Platform]bool, len(post.PublishResults))
	for _, r := range post.PublishResults {
		if r.Success {
			done[r.Platform] = true
		}
	}
	out := make([]types.Platform, 0, len(post.Platforms))
	for _, p := range post.Platforms {
		if !done[p] {
			out = append(out, p)
		}
	}
	return out
}

// mergeResults keeps one result per platform of the post, in the post's platform order.
// Earlier successes are carried forward; everything else comes from the latest attempt.
func mergeResults(post *types.ScheduledPost, latest []types.PublishResult) []types.PublishResult {
	byPlatform := make(map[types.Platform]types.PublishResult, len(post.Platforms))
	for _, r := range post.PublishResults {
		if r.Success {
			byPlatform[r.Platform] = r
		}
	}
	for _, r := range latest {
		byPlatform[r.Platform] = r
	}

	out := make([]types.PublishResult, 0, len(post.Platforms))
	for _, p := range post.Platforms {
		if r, ok := byPlatform[p]; ok {
			out = append(out, r)
		}
	}
	return out
}

func onlyValidationFailures(results []types.PublishResult) bool {
	failed := 0
	for _, r := range results {
		if r.Success {
			continue
		}
		failed++
		if r.FailureKind != types.FailureValidation {
			return false
		}
	}
	return failed > 0
}

func summarize(results []types.PublishResult) string {
	var parts []string
	for _, r := range results {
		if !r.Success {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Platform, r.Error))
		}
	}
	return strings.Join(parts, "; ")
}
