package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/hashicorp/go-multierror"
	"github.com/kasuboski/animez/config"
	"github.com/kasuboski/animez/pkg/cache"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
	"go.uber.org/zap"
)

const (
	defaultScheduleInterval = time.Minute
	defaultPollInterval     = 5 * time.Second
	cancelWaitTimeout       = 30 * time.Second
)

type JobExecutor func(ctx context.Context, job *storage.Job) error

type Scheduler struct {
	storage     storage.Storage
	config      config.Manager
	executors   map[storage.JobType]JobExecutor
	runningJobs *cache.Cache[int64, context.CancelFunc]
}

// NewScheduler creates a scheduler that runs pending jobs and creates the periodic ones
func NewScheduler(storage storage.Storage, config config.Manager, executors map[storage.JobType]JobExecutor) *Scheduler {
	return &Scheduler{
		storage:     storage,
		config:      config,
		executors:   executors,
		runningJobs: cache.New[int64, context.CancelFunc](),
	}
}

// Run blocks until ctx is done, cancelling running jobs on the way out
func (s *Scheduler) Run(ctx context.Context) error {
	go s.processPendingJobs(ctx)
	return s.runJobScheduling(ctx)
}

// periodicJobs are created by the scheduler itself. A zero interval disables one.
func (s *Scheduler) periodicJobs() map[storage.JobType]time.Duration {
	return map[storage.JobType]time.Duration{
		storage.PendingDownloads: s.config.Jobs.PendingDownloads,
		storage.SeasonReconcile:  s.config.Jobs.SeasonReconcile,
	}
}

func (s *Scheduler) runJobScheduling(ctx context.Context) error {
	interval := s.config.Jobs.JobScheduleInterval
	if interval <= 0 {
		interval = defaultScheduleInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return s.shutdownJobs(ctx)
		case <-ticker.C:
			for jobType, every := range s.periodicJobs() {
				if every <= 0 {
					continue
				}
				s.checkAndScheduleJob(ctx, jobType, every)
			}
		}
	}
}

func (s *Scheduler) shutdownJobs(ctx context.Context) error {
	log := logger.FromCtx(ctx)
	log.Debug("scheduler context cancelled")

	// ctx is already done, cancellation bookkeeping still needs the store
	ctx = context.WithoutCancel(ctx)
	jobIDs := s.runningJobs.Keys()

	var wg sync.WaitGroup
	for _, id := range jobIDs {
		wg.Add(1)
		go func(jobID int64) {
			defer wg.Done()
			if err := s.CancelJob(ctx, jobID); err != nil {
				log.Warnw("failed to cancel job on shutdown", zap.Int64("job_id", jobID), zap.Error(err))
			}
		}(id)
	}

	wg.Wait()
	log.Debugw("all jobs cancelled on shutdown", zap.Int("count", len(jobIDs)))
	return nil
}

func (s *Scheduler) checkAndScheduleJob(ctx context.Context, jobType storage.JobType, interval time.Duration) {
	log := logger.FromCtx(ctx, zap.String("job_type", string(jobType)))

	jobs, err := s.storage.ListJobs(ctx, table.Job.Type.EQ(sqlite.String(string(jobType))))
	if err != nil {
		log.Errorw("failed to get last job", zap.Error(err))
		return
	}

	if len(jobs) == 0 {
		log.Debug("no previous jobs found, scheduling immediately")
		if _, err := s.CreateJob(ctx, jobType, nil, nil); err != nil {
			log.Errorw("failed to create pending job", zap.Error(err))
		}
		return
	}

	lastJob := jobs[len(jobs)-1]

	switch lastJob.State {
	case storage.JobStatePending, storage.JobStateRunning:
		log.Debugw("job already pending or running, not scheduling", zap.String("state", string(lastJob.State)))
	case storage.JobStateDone, storage.JobStateError, storage.JobStateCancelled:
		since := time.Since(*lastJob.CreatedAt)
		if since < interval {
			log.Debugw("interval not elapsed yet", zap.Duration("time_remaining", interval-since))
			return
		}

		log.Debugw("interval elapsed, scheduling job", zap.Duration("time_since_last", since))
		if _, err := s.CreateJob(ctx, jobType, nil, nil); err != nil {
			log.Errorw("failed to create pending job", zap.Error(err))
		}
	}
}

// CreateJob enqueues a pending job. A pending job with the same type and target returns storage.ErrJobAlreadyPending.
func (s *Scheduler) CreateJob(ctx context.Context, jobType storage.JobType, animeID, episodeID *int32) (int64, error) {
	log := logger.FromCtx(ctx, zap.String("job_type", string(jobType)))

	if !jobType.Valid() {
		return 0, fmt.Errorf("invalid job type %q", jobType)
	}

	job := storage.Job{
		Job: model.Job{
			Type:      string(jobType),
			AnimeID:   animeID,
			EpisodeID: episodeID,
		},
	}

	id, err := s.storage.CreateJob(ctx, job, storage.JobStatePending)
	if errors.Is(err, storage.ErrJobAlreadyPending) {
		log.Debug("pending job already exists")
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	log.Debugw("created pending job", zap.Int64("id", id))
	return id, nil
}

func (s *Scheduler) listPendingJobs(ctx context.Context) ([]*storage.Job, error) {
	return s.storage.ListJobs(ctx, table.JobTransition.ToState.EQ(sqlite.String(string(storage.JobStatePending))))
}

// ListJobs lists jobs, optionally only those of one type
func (s *Scheduler) ListJobs(ctx context.Context, jobType *storage.JobType) ([]*storage.Job, error) {
	if jobType == nil {
		return s.storage.ListJobs(ctx)
	}
	return s.storage.ListJobs(ctx, table.Job.Type.EQ(sqlite.String(string(*jobType))))
}

func (s *Scheduler) processPendingJobs(ctx context.Context) {
	interval := s.config.Jobs.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPendingJobs(ctx)
		}
	}
}

// runPendingJobs executes every pending job in creation order
func (s *Scheduler) runPendingJobs(ctx context.Context) {
	log := logger.FromCtx(ctx)

	jobs, err := s.listPendingJobs(ctx)
	if err != nil {
		log.Debugw("failed to list pending jobs", zap.Error(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	log.Debugw("found pending jobs", zap.Int("count", len(jobs)))
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		s.executeJob(ctx, job)
	}
}

func (s *Scheduler) executeJob(ctx context.Context, job *storage.Job) {
	id := int64(job.ID)
	log := logger.FromCtx(ctx, zap.Int64("job_id", id), zap.String("job_type", job.Type))

	executor, ok := s.executors[storage.JobType(job.Type)]
	if !ok {
		msg := "no executor found for job type"
		log.Error(msg)
		if err := s.storage.UpdateJobState(ctx, id, storage.JobStateRunning, nil); err == nil {
			s.updateState(ctx, id, storage.JobStateError, &msg)
		}
		return
	}

	if err := s.storage.UpdateJobState(ctx, id, storage.JobStateRunning, nil); err != nil {
		log.Errorw("failed to update job state to running", zap.Error(err))
		return
	}

	jobCtx, cancel := context.WithCancel(logger.WithCtx(ctx, log))
	defer cancel()

	s.runningJobs.Set(id, cancel)
	defer s.runningJobs.Delete(id)

	log.Debug("executing job")

	err := executor(jobCtx, job)
	switch {
	case err != nil && errors.Is(jobCtx.Err(), context.Canceled):
		log.Info("job cancelled")
		s.updateState(ctx, id, storage.JobStateCancelled, nil)
	case err != nil:
		log.Errorw("job execution failed", zap.Error(err))
		msg := err.Error()
		s.updateState(ctx, id, storage.JobStateError, &msg)
	default:
		s.updateState(ctx, id, storage.JobStateDone, nil)
		log.Debug("job completed successfully")
	}
}

// updateState records a final job state even when ctx was cancelled
func (s *Scheduler) updateState(ctx context.Context, id int64, state storage.JobState, msg *string) {
	err := s.storage.UpdateJobState(context.WithoutCancel(ctx), id, state, msg)
	if err != nil {
		logger.FromCtx(ctx).Errorw("failed to update job state", zap.Int64("job_id", id), zap.String("state", string(state)), zap.Error(err))
	}
}

// CancelJob cancels a pending job or signals a running one and waits for it to stop
func (s *Scheduler) CancelJob(ctx context.Context, jobID int64) error {
	log := logger.FromCtx(ctx, zap.Int64("job_id", jobID))

	job, err := s.storage.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	switch job.State {
	case storage.JobStatePending:
		log.Debug("cancelling pending job")
		return s.storage.UpdateJobState(ctx, jobID, storage.JobStateCancelled, nil)

	case storage.JobStateRunning:
		cancel, ok := s.runningJobs.Get(jobID)
		if !ok {
			log.Debug("job not found in running jobs")
			return nil
		}

		log.Debug("cancelling running job")
		cancel()

		timeout := time.After(cancelWaitTimeout)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-timeout:
				log.Error("timeout waiting for job to complete cancellation")
				return nil
			case <-ticker.C:
				if _, exists := s.runningJobs.Get(jobID); !exists {
					log.Debug("job was cancelled")
					return nil
				}
			}
		}

	default:
		return nil
	}
}

// Executors wires each job type to the manager operation that carries it out
func (m *Manager) Executors() map[storage.JobType]JobExecutor {
	return map[storage.JobType]JobExecutor{
		storage.EpisodeIngest:    m.executeEpisodeIngest,
		storage.AnimeIngest:      m.executeAnimeIngest,
		storage.PendingDownloads: m.executePendingDownloads,
		storage.SeasonReconcile:  m.executeSeasonReconcile,
	}
}

func (m *Manager) executeEpisodeIngest(ctx context.Context, job *storage.Job) error {
	if job.EpisodeID == nil {
		return errors.New("episode ingest job has no episode")
	}

	result, err := m.IngestEpisode(ctx, int64(*job.EpisodeID))
	if err != nil {
		return err
	}
	if result.Err != nil {
		return fmt.Errorf("episode %d ended %s: %w", *job.EpisodeID, result.Status, result.Err)
	}
	return nil
}

func (m *Manager) executeAnimeIngest(ctx context.Context, job *storage.Job) error {
	if job.AnimeID == nil {
		return errors.New("anime ingest job has no anime")
	}

	_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: *job.AnimeID, Mode: ModePending})
	return err
}

// executePendingDownloads ingests every anime that has episodes waiting for download
func (m *Manager) executePendingDownloads(ctx context.Context, _ *storage.Job) error {
	episodes, err := m.storage.ListEpisodes(ctx, table.Episode.Status.EQ(sqlite.String(string(storage.EpisodeStatusPendingDownload))))
	if err != nil {
		return err
	}

	seen := make(map[int32]bool)
	var errs *multierror.Error
	for _, e := range episodes {
		if seen[e.AnimeID] {
			continue
		}
		seen[e.AnimeID] = true

		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: e.AnimeID, Mode: ModePending})
		if err != nil {
			errs = multierror.Append(errs, multierror.Prefix(err, fmt.Sprintf("[anime %d]", e.AnimeID)))
		}
	}

	return errs.ErrorOrNil()
}

func (m *Manager) executeSeasonReconcile(ctx context.Context, _ *storage.Job) error {
	return m.ReconcileAll(ctx)
}
