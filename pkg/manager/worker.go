package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strconv"

	"github.com/kasuboski/animez/pkg/address"
	"github.com/kasuboski/animez/pkg/fetch"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/machine"
	"github.com/kasuboski/animez/pkg/storage"
	"go.uber.org/zap"
)

// WorkItem is one episode to transfer
type WorkItem struct {
	AnimeID       int32
	EpisodeID     int32
	SeasonNumber  int32
	EpisodeNumber int32
}

func (w WorkItem) String() string {
	return fmt.Sprintf("season %d episode %d", w.SeasonNumber, w.EpisodeNumber)
}

// WorkResult is the outcome of transferring one episode
type WorkResult struct {
	EpisodeID    int32                 `json:"episodeID"`
	Status       storage.EpisodeStatus `json:"status,omitempty"`
	CanonicalURL string                `json:"canonicalURL,omitempty"`
	// Skipped is set when no transfer was needed or the episode couldn't be claimed
	Skipped  bool   `json:"skipped"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
	Err      error  `json:"-"`
}

// ingestTarget is what every item of one anime shares
type ingestTarget struct {
	animeID  int32
	slug     string
	template string
}

func (m *Manager) tempPath(item WorkItem) string {
	return filepath.Join(
		m.config.Fetch.TempDir,
		strconv.Itoa(int(item.AnimeID)),
		fmt.Sprintf("season-%d", item.SeasonNumber),
		fmt.Sprintf("episode-%d.mp4", item.EpisodeNumber),
	)
}

// runItem transfers an episode, retrying transient failures up to attempts times.
// Missing sources are never retried.
func (m *Manager) runItem(ctx context.Context, target ingestTarget, item WorkItem, progress *Progress, attempts int) WorkResult {
	log := logger.FromCtx(ctx, zap.Int32("episode_id", item.EpisodeID))

	if !m.inFlight.SetIfAbsent(item.EpisodeID, struct{}{}) {
		log.Debug("episode already being transferred")
		return WorkResult{EpisodeID: item.EpisodeID, Skipped: true}
	}
	defer m.inFlight.Delete(item.EpisodeID)

	var result WorkResult
	for attempt := 1; attempt <= attempts; attempt++ {
		result = m.processEpisode(ctx, target, item, progress)
		result.Attempts = attempt

		if result.Skipped || result.Status != storage.EpisodeStatusError {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			log.Warnw("episode transfer failed, retrying", zap.Int("attempt", attempt), zap.Error(result.Err))
		}
	}

	return result
}

// processEpisode makes a single attempt at getting an episode to ready.
// The temp file is removed on every return path, including panics.
func (m *Manager) processEpisode(ctx context.Context, target ingestTarget, item WorkItem, progress *Progress) (result WorkResult) {
	log := logger.FromCtx(ctx,
		zap.Int32("episode_id", item.EpisodeID),
		zap.Int32("season", item.SeasonNumber),
		zap.Int32("episode", item.EpisodeNumber),
	)
	ctx = logger.WithCtx(ctx, log)

	var phase storage.EpisodeStatus
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		log.Errorw("recovered from panic during transfer", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		result = m.fail(ctx, item, phase, storage.EpisodeStatusError, fmt.Errorf("panic during transfer: %v", r), progress)
	}()

	remotePath := address.RemotePath(target.slug, item.SeasonNumber, item.EpisodeNumber)
	canonicalURL := m.addresser.CanonicalURL(remotePath)
	result = WorkResult{EpisodeID: item.EpisodeID, CanonicalURL: canonicalURL}

	episode, err := m.storage.GetEpisode(ctx, int64(item.EpisodeID))
	if err != nil {
		result.Status = storage.EpisodeStatusError
		result.Err = err
		result.Error = err.Error()
		return result
	}

	if episode.CanonicalURL != nil && *episode.CanonicalURL == canonicalURL {
		if episode.State() == storage.EpisodeStatusReady {
			log.Debug("episode already at canonical url")
			result.Status = storage.EpisodeStatusReady
			result.Skipped = true
			return result
		}

		err := m.storage.MarkEpisodeReady(ctx, int64(item.EpisodeID), canonicalURL)
		if err == nil {
			log.Infow("episode already uploaded, marked ready", zap.String("from", string(episode.State())))
			result.Status = storage.EpisodeStatusReady
			result.Skipped = true
			return result
		}
		if !errors.Is(err, machine.ErrInvalidTransition) {
			result.Status = storage.EpisodeStatusError
			result.Err = err
			result.Error = err.Error()
			return result
		}
	}

	err = m.storage.UpdateEpisodeStatus(ctx, int64(item.EpisodeID), storage.EpisodeStatusDownloading, nil)
	if err != nil {
		if errors.Is(err, machine.ErrInvalidTransition) {
			log.Debugw("episode can't be claimed", zap.String("status", string(episode.State())))
			result.Status = episode.State()
			result.Skipped = true
			return result
		}
		result.Status = storage.EpisodeStatusError
		result.Err = err
		result.Error = err.Error()
		return result
	}
	progress.transition(item, phase, storage.EpisodeStatusDownloading)
	phase = storage.EpisodeStatusDownloading

	tmpPath := m.tempPath(item)
	if err := m.fs.MkdirAll(filepath.Dir(tmpPath), 0o755); err != nil {
		return m.fail(ctx, item, phase, storage.EpisodeStatusError, fmt.Errorf("failed to create temp dir: %w", err), progress)
	}
	defer func() {
		if err := m.fs.Remove(tmpPath); err != nil {
			log.Warnw("failed to remove temp file", zap.String("path", tmpPath), zap.Error(err))
		}
	}()
	// a previous attempt may have left a partial file
	if err := m.fs.Remove(tmpPath); err != nil {
		return m.fail(ctx, item, phase, storage.EpisodeStatusError, fmt.Errorf("failed to clear temp file: %w", err), progress)
	}

	sourceURL := m.resolver.Resolve(target.slug, item.SeasonNumber, item.EpisodeNumber, target.template)
	log.Debugw("fetching episode", zap.String("source", sourceURL), zap.String("path", tmpPath))

	if err := m.fetcher.Fetch(ctx, sourceURL, tmpPath); err != nil {
		status := storage.EpisodeStatusError
		if fetch.IsSourceMissing(err) {
			status = storage.EpisodeStatusSourceMissing
		}
		return m.fail(ctx, item, phase, status, err, progress)
	}

	err = m.storage.UpdateEpisodeStatus(ctx, int64(item.EpisodeID), storage.EpisodeStatusUploading, nil)
	if err != nil {
		return m.fail(ctx, item, phase, storage.EpisodeStatusError, err, progress)
	}
	progress.transition(item, phase, storage.EpisodeStatusUploading)
	phase = storage.EpisodeStatusUploading

	if err := m.uploader.Upload(ctx, tmpPath, remotePath); err != nil {
		return m.fail(ctx, item, phase, storage.EpisodeStatusError, fmt.Errorf("upload %s: %w", remotePath, err), progress)
	}

	if err := m.storage.MarkEpisodeReady(ctx, int64(item.EpisodeID), canonicalURL); err != nil {
		return m.fail(ctx, item, phase, storage.EpisodeStatusError, err, progress)
	}
	progress.transition(item, phase, storage.EpisodeStatusReady)

	log.Infow("episode ready", zap.String("url", canonicalURL))
	result.Status = storage.EpisodeStatusReady
	return result
}

// fail records a terminal status and message on the episode.
// The write ignores cancellation of ctx so the row doesn't stay stuck mid transfer.
func (m *Manager) fail(ctx context.Context, item WorkItem, phase, status storage.EpisodeStatus, cause error, progress *Progress) WorkResult {
	log := logger.FromCtx(ctx)
	msg := cause.Error()

	if phase != "" {
		err := m.storage.UpdateEpisodeStatus(context.WithoutCancel(ctx), int64(item.EpisodeID), status, &msg)
		if err != nil {
			log.Errorw("failed to record episode failure", zap.String("status", string(status)), zap.Error(err))
		}
	}
	progress.transition(item, phase, status)

	log.Warnw("episode transfer failed", zap.String("status", string(status)), zap.Error(cause))
	return WorkResult{
		EpisodeID: item.EpisodeID,
		Status:    status,
		Error:     msg,
		Err:       cause,
	}
}
