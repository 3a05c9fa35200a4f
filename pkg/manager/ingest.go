package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/google/uuid"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/source"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	// ModePending ingests episodes waiting in pending_download
	ModePending Mode = "pending"
	// ModeRepair walks every episode that isn't paused. Ready episodes short circuit.
	ModeRepair Mode = "repair"
)

var ErrInvalidMode = errors.New("invalid ingest mode")

type IngestRequest struct {
	AnimeID int32 `json:"animeID"`
	// SeasonNumber limits a pending run to one season and a repair run to seasons up to and including it
	SeasonNumber *int32 `json:"seasonNumber,omitempty"`
	Mode         Mode   `json:"mode"`
}

// IngestResult counts are disjoint and add up to Total
type IngestResult struct {
	RunID         string           `json:"runID"`
	AnimeID       int32            `json:"animeID"`
	Total         int              `json:"total"`
	Ready         int              `json:"ready"`
	Failed        int              `json:"failed"`
	SourceMissing int              `json:"sourceMissing"`
	Skipped       int              `json:"skipped"`
	Reconcile     *ReconcileResult `json:"reconcile,omitempty"`
	Results       []WorkResult     `json:"results"`
}

// Run is a registered ingestion that can be polled while it executes
type Run struct {
	ID        string
	Request   IngestRequest
	StartedAt time.Time
	Progress  *Progress

	mu         sync.RWMutex
	done       chan struct{}
	result     *IngestResult
	err        error
	finishedAt *time.Time
}

func newRun(req IngestRequest) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Request:   req,
		StartedAt: time.Now(),
		Progress:  NewProgress(),
		done:      make(chan struct{}),
	}
}

// Done is closed once the run has finished
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// RunStatus is a point in time view of a run for pollers
type RunStatus struct {
	ID         string           `json:"id"`
	Request    IngestRequest    `json:"request"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
	Progress   ProgressSnapshot `json:"progress"`
	Result     *IngestResult    `json:"result,omitempty"`
	Error      *string          `json:"error,omitempty"`
}

func (s RunStatus) Finished() bool {
	return s.FinishedAt != nil
}

func (r *Run) Status() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := RunStatus{
		ID:         r.ID,
		Request:    r.Request,
		StartedAt:  r.StartedAt,
		FinishedAt: r.finishedAt,
		Progress:   r.Progress.Snapshot(),
		Result:     r.result,
	}
	if r.err != nil {
		msg := r.err.Error()
		status.Error = &msg
	}
	return status
}

func (r *Run) finish(result *IngestResult, err error) {
	r.mu.Lock()
	now := time.Now()
	r.result = result
	r.err = err
	r.finishedAt = &now
	r.mu.Unlock()

	close(r.done)
}

// GetRun looks up a registered run
func (m *Manager) GetRun(id string) (*Run, bool) {
	return m.runs.Get(id)
}

// ListRuns returns the runs registered in this process, newest first.
// Runs that finished longer than the retention window ago are dropped.
func (m *Manager) ListRuns() []*Run {
	m.pruneRuns(time.Now())
	runs := m.runs.Values()
	slices.SortFunc(runs, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs
}

// IngestAnime transfers an anime's candidate episodes and waits for the run to finish.
// Individual episode failures are counted in the result, not returned.
func (m *Manager) IngestAnime(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	run, err := m.prepareRun(req)
	if err != nil {
		return nil, err
	}
	return m.executeRun(ctx, run)
}

// StartIngest registers a run and executes it in the background. The run outlives ctx.
func (m *Manager) StartIngest(ctx context.Context, req IngestRequest) (*Run, error) {
	run, err := m.prepareRun(req)
	if err != nil {
		return nil, err
	}

	go m.executeRun(context.WithoutCancel(ctx), run)
	return run, nil
}

func (m *Manager) prepareRun(req IngestRequest) (*Run, error) {
	if err := m.validateConfig(); err != nil {
		return nil, err
	}

	switch req.Mode {
	case "":
		req.Mode = ModePending
	case ModePending, ModeRepair:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}

	m.pruneRuns(time.Now())
	run := newRun(req)
	m.runs.Set(run.ID, run)
	return run, nil
}

func (m *Manager) pruneRuns(now time.Time) {
	cutoff := now.Add(-m.config.Ingest.RunRetention)
	for _, run := range m.runs.Values() {
		finished := run.Status().FinishedAt
		if finished != nil && finished.Before(cutoff) {
			m.runs.Delete(run.ID)
		}
	}
}

func (m *Manager) executeRun(ctx context.Context, run *Run) (*IngestResult, error) {
	result, err := m.ingest(ctx, run)
	run.finish(result, err)
	return result, err
}

func (m *Manager) ingest(ctx context.Context, run *Run) (*IngestResult, error) {
	req := run.Request
	log := logger.FromCtx(ctx, zap.String("run_id", run.ID), zap.Int32("anime_id", req.AnimeID), zap.String("mode", string(req.Mode)))
	ctx = logger.WithCtx(ctx, log)

	result := &IngestResult{RunID: run.ID, AnimeID: req.AnimeID, Results: make([]WorkResult, 0)}

	anime, err := m.storage.GetAnime(ctx, int64(req.AnimeID))
	if err != nil {
		run.Progress.message("anime not found")
		return nil, err
	}

	target, err := m.target(ctx, anime)
	if err != nil {
		run.Progress.message(err.Error())
		return nil, err
	}

	if m.config.Ingest.ReconcileFirst {
		run.Progress.message("reconciling seasons")
		reconciled, err := m.ReconcileSeasons(ctx, int64(anime.ID))
		switch {
		case err != nil:
			log.Warnw("season reconcile failed, continuing with current layout", zap.Error(err))
		case !reconciled.Success():
			log.Warnw("season reconcile reported errors", zap.Strings("errors", reconciled.Errors))
		}
		result.Reconcile = reconciled
	}

	items, skipped, err := m.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	result.Skipped += skipped
	result.Total = len(items) + skipped

	run.Progress.start(len(items), fmt.Sprintf("ingesting %d episodes", len(items)))
	log.Infow("starting ingest", zap.Int("episodes", len(items)), zap.Int("unaddressable", skipped))

	results := m.runPool(ctx, target, items, run.Progress, m.config.Ingest.MaxAttempts)
	for _, r := range results {
		switch {
		case r.Skipped:
			result.Skipped++
		case r.Status == storage.EpisodeStatusReady:
			result.Ready++
		case r.Status == storage.EpisodeStatusSourceMissing:
			result.SourceMissing++
		default:
			result.Failed++
		}
	}
	result.Results = results

	run.Progress.message(fmt.Sprintf("done: %d ready, %d failed, %d source missing, %d skipped", result.Ready, result.Failed, result.SourceMissing, result.Skipped))
	log.Infow("ingest finished",
		zap.Int("ready", result.Ready),
		zap.Int("failed", result.Failed),
		zap.Int("source_missing", result.SourceMissing),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

// runPool transfers items with at most ingest.concurrency in flight for this run,
// further bounded by the process wide semaphore
func (m *Manager) runPool(ctx context.Context, target ingestTarget, items []WorkItem, progress *Progress, attempts int) []WorkResult {
	results := make([]WorkResult, len(items))

	var g errgroup.Group
	g.SetLimit(m.config.Ingest.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			if err := m.global.Acquire(ctx, 1); err != nil {
				results[i] = WorkResult{EpisodeID: item.EpisodeID, Status: storage.EpisodeStatusError, Err: err, Error: err.Error()}
				progress.finish(item, results[i])
				return nil
			}
			defer m.global.Release(1)

			results[i] = m.runItem(ctx, target, item, progress, attempts)
			progress.finish(item, results[i])
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// candidates lists the episodes a run works on ordered by season then episode.
// Episodes without a season number can't be addressed and are only counted.
func (m *Manager) candidates(ctx context.Context, req IngestRequest) ([]WorkItem, int, error) {
	where := []sqlite.BoolExpression{table.Episode.AnimeID.EQ(sqlite.Int32(req.AnimeID))}

	switch req.Mode {
	case ModeRepair:
		where = append(where, table.Episode.Status.NOT_EQ(sqlite.String(string(storage.EpisodeStatusPaused))))
		if req.SeasonNumber != nil {
			where = append(where, table.Episode.SeasonNumber.LT_EQ(sqlite.Int32(*req.SeasonNumber)))
		}
	default:
		where = append(where, table.Episode.Status.EQ(sqlite.String(string(storage.EpisodeStatusPendingDownload))))
		if req.SeasonNumber != nil {
			where = append(where, table.Episode.SeasonNumber.EQ(sqlite.Int32(*req.SeasonNumber)))
		}
	}

	episodes, err := m.storage.ListEpisodes(ctx, where...)
	if err != nil {
		return nil, 0, err
	}

	items, unaddressable := dedupeEpisodes(episodes)
	if unaddressable > 0 {
		logger.FromCtx(ctx).Warnw("episodes without a season were left out, reconcile the anime", zap.Int("count", unaddressable))
	}
	return items, unaddressable, nil
}

// target checks the anime's template before any transfer and makes sure it has a slug
func (m *Manager) target(ctx context.Context, anime *model.Anime) (ingestTarget, error) {
	target := ingestTarget{animeID: anime.ID}
	if anime.SourceTemplate != nil {
		target.template = *anime.SourceTemplate
		if err := source.ValidateTemplate(target.template); err != nil {
			return target, fmt.Errorf("%w: anime %d: %w", ErrInvalidConfig, anime.ID, err)
		}
	}

	slug, err := m.ensureSlug(ctx, anime)
	if err != nil {
		return target, err
	}
	target.slug = slug
	return target, nil
}

type episodeKey struct {
	season  int32
	episode int32
}

// dedupeEpisodes keeps the first episode for each season and episode number
func dedupeEpisodes(episodes []*storage.Episode) ([]WorkItem, int) {
	seen := make(map[episodeKey]bool)
	items := make([]WorkItem, 0, len(episodes))
	unaddressable := 0

	for _, e := range episodes {
		if e.SeasonNumber == nil || *e.SeasonNumber <= 0 {
			unaddressable++
			continue
		}

		key := episodeKey{season: *e.SeasonNumber, episode: e.EpisodeNumber}
		if seen[key] {
			continue
		}
		seen[key] = true

		items = append(items, WorkItem{
			AnimeID:       e.AnimeID,
			EpisodeID:     e.ID,
			SeasonNumber:  *e.SeasonNumber,
			EpisodeNumber: e.EpisodeNumber,
		})
	}

	return items, unaddressable
}

// IngestEpisode makes one attempt at transferring a single episode
func (m *Manager) IngestEpisode(ctx context.Context, episodeID int64) (*WorkResult, error) {
	if err := m.validateConfig(); err != nil {
		return nil, err
	}

	log := logger.FromCtx(ctx, zap.Int64("episode_id", episodeID))
	ctx = logger.WithCtx(ctx, log)

	episode, err := m.storage.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode.SeasonNumber == nil || *episode.SeasonNumber <= 0 {
		return nil, fmt.Errorf("episode %d has no season, reconcile anime %d first", episodeID, episode.AnimeID)
	}

	anime, err := m.storage.GetAnime(ctx, int64(episode.AnimeID))
	if err != nil {
		return nil, err
	}

	target, err := m.target(ctx, anime)
	if err != nil {
		return nil, err
	}

	item := WorkItem{
		AnimeID:       episode.AnimeID,
		EpisodeID:     episode.ID,
		SeasonNumber:  *episode.SeasonNumber,
		EpisodeNumber: episode.EpisodeNumber,
	}

	if err := m.global.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.global.Release(1)

	result := m.runItem(ctx, target, item, NewProgress(), 1)
	return &result, nil
}
