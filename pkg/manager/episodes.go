package manager

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/source"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
	"go.uber.org/zap"
)

// DiscoverEpisodes adds newly aired episodes as pending_download. Numbers already in the season are skipped.
func (m *Manager) DiscoverEpisodes(ctx context.Context, animeID int64, seasonNumber int32, episodeNumbers []int32) ([]int64, error) {
	return m.addEpisodes(ctx, animeID, seasonNumber, episodeNumbers, storage.EpisodeStatusPendingDownload)
}

// ImportEpisodes creates pending episodes 1..count for a season from catalog metadata
func (m *Manager) ImportEpisodes(ctx context.Context, animeID int64, seasonNumber int32, count int32) ([]int64, error) {
	numbers := make([]int32, 0, max(count, 0))
	for n := int32(1); n <= count; n++ {
		numbers = append(numbers, n)
	}
	return m.addEpisodes(ctx, animeID, seasonNumber, numbers, storage.EpisodeStatusPending)
}

func (m *Manager) addEpisodes(ctx context.Context, animeID int64, seasonNumber int32, numbers []int32, status storage.EpisodeStatus) ([]int64, error) {
	if seasonNumber <= 0 {
		return nil, fmt.Errorf("season number must be positive, got %d", seasonNumber)
	}

	log := logger.FromCtx(ctx, zap.Int64("anime_id", animeID), zap.Int32("season", seasonNumber))

	if _, err := m.storage.GetAnime(ctx, animeID); err != nil {
		return nil, err
	}

	season, err := m.findOrCreateSeason(ctx, int32(animeID), seasonNumber)
	if err != nil {
		return nil, err
	}

	existing, err := m.storage.ListEpisodes(ctx, table.Episode.SeasonID.EQ(sqlite.Int32(season.ID)))
	if err != nil {
		return nil, err
	}
	present := make(map[int32]bool, len(existing))
	for _, e := range existing {
		present[e.EpisodeNumber] = true
	}

	sorted := slices.Clone(numbers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	created := make([]int64, 0, len(sorted))
	for _, n := range sorted {
		if n <= 0 || present[n] {
			continue
		}

		id, err := m.storage.CreateEpisode(ctx, model.Episode{
			AnimeID:       int32(animeID),
			SeasonID:      ptr(season.ID),
			SeasonNumber:  ptr(seasonNumber),
			EpisodeNumber: n,
			Status:        string(status),
		})
		if err != nil {
			return created, fmt.Errorf("failed to add episode %d: %w", n, err)
		}
		created = append(created, id)
	}

	total := int32(len(existing) + len(created))
	if total != season.EpisodeCount {
		if err := m.storage.UpdateSeasonEpisodeCount(ctx, int64(season.ID), total); err != nil {
			return created, err
		}
	}

	log.Infow("added episodes", zap.Int("created", len(created)), zap.String("status", string(status)))
	return created, nil
}

func (m *Manager) findOrCreateSeason(ctx context.Context, animeID int32, seasonNumber int32) (*model.Season, error) {
	where := table.Season.AnimeID.EQ(sqlite.Int32(animeID)).
		AND(table.Season.SeasonNumber.EQ(sqlite.Int32(seasonNumber)))

	season, err := m.storage.GetSeason(ctx, where)
	if err == nil {
		return season, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	id, err := m.storage.CreateSeason(ctx, model.Season{AnimeID: animeID, SeasonNumber: ptr(seasonNumber)})
	if err != nil {
		return nil, err
	}

	return &model.Season{ID: int32(id), AnimeID: animeID, SeasonNumber: ptr(seasonNumber)}, nil
}

// QueueEpisode marks an episode for download and enqueues a job to transfer it
func (m *Manager) QueueEpisode(ctx context.Context, episodeID int64) (int64, error) {
	episode, err := m.storage.GetEpisode(ctx, episodeID)
	if err != nil {
		return 0, err
	}

	if episode.State() != storage.EpisodeStatusPendingDownload {
		err := m.storage.UpdateEpisodeStatus(ctx, episodeID, storage.EpisodeStatusPendingDownload, nil)
		if err != nil {
			return 0, err
		}
	}

	job := storage.Job{
		Job: model.Job{
			Type:      string(storage.EpisodeIngest),
			AnimeID:   ptr(episode.AnimeID),
			EpisodeID: ptr(episode.ID),
		},
	}

	id, err := m.storage.CreateJob(ctx, job, storage.JobStatePending)
	if err != nil {
		return 0, err
	}

	logger.FromCtx(ctx).Infow("queued episode", zap.Int64("episode_id", episodeID), zap.Int64("job_id", id))
	return id, nil
}

// ListEpisodes returns an anime's episodes ordered by season and episode number
func (m *Manager) ListEpisodes(ctx context.Context, animeID int64) ([]*storage.Episode, error) {
	if _, err := m.storage.GetAnime(ctx, animeID); err != nil {
		return nil, err
	}
	return m.storage.ListEpisodes(ctx, table.Episode.AnimeID.EQ(sqlite.Int64(animeID)))
}

// ListAnime returns every anime in the catalog
func (m *Manager) ListAnime(ctx context.Context) ([]*model.Anime, error) {
	return m.storage.ListAnime(ctx)
}

// AddAnime creates a catalog entry and assigns its slug. template may be empty.
func (m *Manager) AddAnime(ctx context.Context, title, template string) (*model.Anime, error) {
	if strings.TrimSpace(title) == "" {
		return nil, errors.New("anime title required")
	}

	anime := model.Anime{Title: strings.TrimSpace(title)}
	if template != "" {
		if err := source.ValidateTemplate(template); err != nil {
			return nil, err
		}
		anime.SourceTemplate = &template
	}

	id, err := m.storage.CreateAnime(ctx, anime)
	if err != nil {
		return nil, err
	}
	anime.ID = int32(id)

	if _, err := m.ensureSlug(ctx, &anime); err != nil {
		return nil, err
	}
	return &anime, nil
}
