package manager

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
)

// GetActiveActivity lists episodes mid transfer, running jobs and runs still in progress
func (m *Manager) GetActiveActivity(ctx context.Context) (*ActivityResponse, error) {
	log := logger.FromCtx(ctx)

	episodes, err := m.storage.ListEpisodes(ctx, table.Episode.Status.IN(
		sqlite.String(string(storage.EpisodeStatusDownloading)),
		sqlite.String(string(storage.EpisodeStatusUploading)),
	))
	if err != nil {
		log.Errorw("failed to list active episodes", "error", err)
		return nil, err
	}

	jobs, err := m.storage.ListJobs(ctx, table.JobTransition.ToState.EQ(sqlite.String(string(storage.JobStateRunning))))
	if err != nil {
		log.Errorw("failed to list running jobs", "error", err)
		return nil, err
	}

	runs := make([]RunStatus, 0)
	for _, r := range m.ListRuns() {
		if status := r.Status(); !status.Finished() {
			runs = append(runs, status)
		}
	}

	return &ActivityResponse{
		Episodes: transformActiveEpisodes(episodes),
		Jobs:     transformActiveJobs(jobs),
		Runs:     runs,
	}, nil
}

func transformActiveEpisodes(episodes []*storage.Episode) []*ActiveEpisode {
	result := make([]*ActiveEpisode, len(episodes))
	for i, e := range episodes {
		since := timeOrZero(e.UpdatedAt)
		result[i] = &ActiveEpisode{
			ID:            e.ID,
			AnimeID:       e.AnimeID,
			SeasonNumber:  e.SeasonNumber,
			EpisodeNumber: e.EpisodeNumber,
			Status:        e.Status,
			StateSince:    since,
			Duration:      formatDuration(time.Since(since)),
		}
	}
	return result
}

func transformActiveJobs(jobs []*storage.Job) []*ActiveJob {
	result := make([]*ActiveJob, len(jobs))
	for i, j := range jobs {
		updated := timeOrZero(j.UpdatedAt)
		result[i] = &ActiveJob{
			ID:        j.ID,
			Type:      j.Type,
			State:     string(j.State),
			AnimeID:   j.AnimeID,
			EpisodeID: j.EpisodeID,
			UpdatedAt: updated,
			Duration:  formatDuration(time.Since(updated)),
		}
	}
	return result
}

// GetRecentFailures lists failed episodes and jobs updated within the last hours, newest first
func (m *Manager) GetRecentFailures(ctx context.Context, hours int) (*FailuresResponse, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("hours must be positive, got %d", hours)
	}
	log := logger.FromCtx(ctx)
	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)

	episodes, err := m.storage.ListEpisodes(ctx, table.Episode.Status.IN(
		sqlite.String(string(storage.EpisodeStatusError)),
		sqlite.String(string(storage.EpisodeStatusSourceMissing)),
	))
	if err != nil {
		log.Errorw("failed to list failed episodes", "error", err)
		return nil, err
	}

	jobs, err := m.storage.ListJobs(ctx, table.JobTransition.ToState.EQ(sqlite.String(string(storage.JobStateError))))
	if err != nil {
		log.Errorw("failed to list error jobs", "error", err)
		return nil, err
	}

	failures := make([]*FailureItem, 0, len(episodes)+len(jobs))
	for _, e := range episodes {
		at := timeOrZero(e.UpdatedAt)
		if at.Before(cutoff) {
			continue
		}
		failures = append(failures, &FailureItem{
			Type:      "episode",
			ID:        e.ID,
			Title:     episodeTitle(e),
			State:     e.Status,
			FailedAt:  at,
			Ago:       humanize.Time(at),
			Error:     deref(e.ErrorMessage),
			Retryable: e.State() != storage.EpisodeStatusSourceMissing,
		})
	}
	for _, j := range jobs {
		at := timeOrZero(j.UpdatedAt)
		if at.Before(cutoff) {
			continue
		}
		failures = append(failures, &FailureItem{
			Type:      "job",
			ID:        j.ID,
			Title:     j.Type,
			State:     string(j.State),
			FailedAt:  at,
			Ago:       humanize.Time(at),
			Error:     deref(j.Error),
			Retryable: true,
		})
	}

	slices.SortStableFunc(failures, func(a, b *FailureItem) int {
		return b.FailedAt.Compare(a.FailedAt)
	})

	return &FailuresResponse{Failures: failures}, nil
}

func episodeTitle(e *storage.Episode) string {
	if e.Title != nil && *e.Title != "" {
		return *e.Title
	}
	if e.SeasonNumber == nil {
		return fmt.Sprintf("anime %d episode %d", e.AnimeID, e.EpisodeNumber)
	}
	return fmt.Sprintf("anime %d S%02dE%02d", e.AnimeID, *e.SeasonNumber, e.EpisodeNumber)
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int64(d.Minutes()))
	}
	hours := int64(d.Hours())
	if minutes := int64(d.Minutes()) % 60; minutes > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}
