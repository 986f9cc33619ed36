package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/RezaEskandarii/postfire/internal/constants"
	"github.com/RezaEskandarii/postfire/internal/lock"
	"github.com/RezaEskandarii/postfire/internal/store"
	"github.com/RezaEskandarii/postfire/types"
)

// Settings are the dispatcher knobs taken from PostfireConfig.
type Settings struct {
	WorkerCount            int
	BatchSize              int
	TickInterval           time.Duration
	CleanupInterval        time.Duration
	HealthInterval         time.Duration
	FailedRetention        time.Duration
	StaleProcessingTimeout time.Duration
}

// Dispatcher claims due jobs on a fixed interval and hands each one to its registered handler.
type Dispatcher struct {
	jobs     store.JobStore
	handlers *JobHandler
	locks    lock.DistributedLockManager
	settings Settings
	instance string
	now      func() time.Time
	log      zerolog.Logger
}

func NewDispatcher(jobs store.JobStore, handlers *JobHandler, locks lock.DistributedLockManager, settings Settings, instance string, log zerolog.Logger) *Dispatcher {
	if settings.WorkerCount < 1 {
		settings.WorkerCount = 1
	}
	if settings.BatchSize < 1 {
		settings.BatchSize = 1
	}
	return &Dispatcher{
		jobs:     jobs,
		handlers: handlers,
		locks:    locks,
		settings: settings,
		instance: instance,
		now:      time.Now,
		log:      log.With().Str("component", "dispatcher").Str("instance", instance).Logger(),
	}
}

// Tick claims one batch of due jobs and runs them with bounded parallelism.
// It returns once every claimed job has settled.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	jobs, err := d.jobs.ClaimDue(ctx, d.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim due jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	d.log.Debug().Int("claimed", len(jobs)).Msg("processing due jobs")

	sem := semaphore.NewWeighted(int64(d.settings.WorkerCount))
	var wg sync.WaitGroup

	for i, job := range jobs {
		if err := sem.Acquire(ctx, 1); err != nil {
			d.log.Warn().Err(err).Int("unstarted", len(jobs)-i).Msg("tick interrupted")
			for _, rest := range jobs[i:] {
				d.release(ctx, rest, "dispatcher stopped before running the job")
			}
			break
		}
		wg.Add(1)
		go d.handleJob(ctx, sem, &wg, job)
	}

	wg.Wait()
	return len(jobs), nil
}

func (d *Dispatcher) handleJob(ctx context.Context, sem *semaphore.Weighted, wg *sync.WaitGroup, job types.Job) {
	log := d.log.With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job handler panicked, job left for stale recovery")
		}
		sem.Release(1)
		wg.Done()
	}()

	if !d.handlers.Exists(job.Type) {
		log.Error().Msg("no handler registered for job type")
		if _, err := d.jobs.FailPermanently(ctx, job.ID, fmt.Sprintf("no handler for job type %q", job.Type)); err != nil {
			log.Error().Err(err).Msg("failed to record unknown job type")
		}
		return
	}

	if err := d.handlers.Execute(ctx, job); err != nil {
		log.Error().Err(err).Msg("job execution failed, returning it to the due set")
		d.release(ctx, job, err.Error())
	}
}

// release puts a claimed job that settled nothing back in the due set for the next tick.
// A panicking handler skips this, so RequeueStale charges those jobs a retry.
func (d *Dispatcher) release(ctx context.Context, job types.Job, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	released, err := d.jobs.Release(ctx, job.ID, reason)
	switch {
	case err != nil:
		d.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to release job, left for stale recovery")
	case !released:
		d.log.Debug().Str("job_id", job.ID).Msg("job already settled, nothing to release")
	}
}

// CleanupTick purges old failed jobs and returns stale claims to the due set.
// Only one instance runs it at a time; the others skip.
func (d *Dispatcher) CleanupTick(ctx context.Context) error {
	ok, err := d.locks.TryAcquire(ctx, constants.CleanupLock)
	if err != nil {
		return fmt.Errorf("acquire cleanup lock: %w", err)
	}
	if !ok {
		d.log.Debug().Msg("cleanup running elsewhere, skipped")
		return nil
	}
	defer func() {
		if err := d.locks.Release(context.WithoutCancel(ctx), constants.CleanupLock); err != nil {
			d.log.Error().Err(err).Msg("failed to release cleanup lock")
		}
	}()

	now := d.now()
	var errs []error

	purged, err := d.jobs.PurgeFailed(ctx, now.Add(-d.settings.FailedRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("purge failed jobs: %w", err))
	}
	stale, err := d.jobs.RequeueStale(ctx, now.Add(-d.settings.StaleProcessingTimeout))
	if err != nil {
		errs = append(errs, fmt.Errorf("requeue stale jobs: %w", err))
	}
	if stale.Failed > 0 {
		d.log.Warn().Int("failed", stale.Failed).Msg("stale jobs ran out of retries")
	}

	d.log.Info().Int("purged", purged).Int("requeued", stale.Requeued).Msg("cleanup finished")
	return errors.Join(errs...)
}

// HealthTick logs the queue counters.
func (d *Dispatcher) HealthTick(ctx context.Context) (types.JobStats, error) {
	stats, err := d.jobs.Stats(ctx)
	if err != nil {
		return stats, fmt.Errorf("read job stats: %w", err)
	}
	d.log.Info().
		Int64("pending", stats.Pending).
		Int64("processing", stats.Processing).
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Msg("queue health")
	return stats, nil
}

// Start schedules the three ticks and blocks until ctx is done. A tick still running when its
// next slot comes up is skipped.
func (d *Dispatcher) Start(ctx context.Context) error {
	cronLog := cron.PrintfLogger(zerologPrintf{d.log})
	c := cron.New(cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)), cron.WithLogger(cronLog))

	entries := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"tick", d.settings.TickInterval, func(ctx context.Context) error { _, err := d.Tick(ctx); return err }},
		{"cleanup", d.settings.CleanupInterval, d.CleanupTick},
		{"health", d.settings.HealthInterval, func(ctx context.Context) error { _, err := d.HealthTick(ctx); return err }},
	}
	for _, e := range entries {
		if e.interval <= 0 {
			return fmt.Errorf("%s interval must be positive", e.name)
		}
		name, run := e.name, e.run
		if _, err := c.AddFunc(fmt.Sprintf("@every %s", e.interval), func() {
			if err := run(ctx); err != nil {
				d.log.Error().Err(err).Str("tick", name).Msg("tick failed")
			}
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	d.log.Info().
		Dur("tick_interval", d.settings.TickInterval).
		Int("workers", d.settings.WorkerCount).
		Int("batch_size", d.settings.BatchSize).
		Msg("dispatcher started")
	c.Start()

	<-ctx.Done()
	// wait for running ticks so claimed jobs settle before shutdown
	<-c.Stop().Done()
	d.releaseLocks()
	d.log.Info().Msg("dispatcher stopped")
	return nil
}

func (d *Dispatcher) releaseLocks() {
	for _, lockID := range constants.Locks {
		if err := d.locks.Release(context.Background(), lockID); err != nil {
			d.log.Error().Err(err).Int("lock_id", lockID).Msg("failed to release lock")
		}
	}
}

type zerologPrintf struct {
	log zerolog.Logger
}

func (z zerologPrintf) Printf(format string, args ...interface{}) {
	z.log.Debug().Msgf(format, args...)
}
