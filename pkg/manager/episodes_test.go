package manager

import (
	"context"
	"testing"

	"github.com/kasuboski/animez/pkg/machine"
	"github.com/kasuboski/animez/pkg/source"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DiscoverEpisodes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, ctx)
	m := newTestManager(t, store, testConfig(t), nil, nil)
	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})

	ids, err := m.DiscoverEpisodes(ctx, int64(animeID), 2, []int32{3, 1, 2, 2})
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	episodes, err := m.ListEpisodes(ctx, int64(animeID))
	require.NoError(t, err)
	require.Len(t, episodes, 3)
	for i, e := range episodes {
		assert.Equal(t, int32(i+1), e.EpisodeNumber)
		assert.Equal(t, ptr(int32(2)), e.SeasonNumber)
		assert.Equal(t, storage.EpisodeStatusPendingDownload, e.State())
	}

	seasons := listSeasons(t, ctx, store, animeID)
	require.Len(t, seasons, 1)
	assert.Equal(t, int32(3), seasons[0].EpisodeCount)

	t.Run("known numbers are skipped", func(t *testing.T) {
		ids, err := m.DiscoverEpisodes(ctx, int64(animeID), 2, []int32{3, 4})
		require.NoError(t, err)
		assert.Len(t, ids, 1)

		seasons := listSeasons(t, ctx, store, animeID)
		assert.Equal(t, int32(4), seasons[0].EpisodeCount)
	})

	t.Run("season must be positive", func(t *testing.T) {
		_, err := m.DiscoverEpisodes(ctx, int64(animeID), 0, []int32{1})
		assert.Error(t, err)
	})

	t.Run("unknown anime", func(t *testing.T) {
		_, err := m.DiscoverEpisodes(ctx, 99, 1, []int32{1})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestManager_ImportEpisodes(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, ctx)
	m := newTestManager(t, store, testConfig(t), nil, nil)
	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})

	ids, err := m.ImportEpisodes(ctx, int64(animeID), 1, 12)
	require.NoError(t, err)
	assert.Len(t, ids, 12)

	episodes, err := m.ListEpisodes(ctx, int64(animeID))
	require.NoError(t, err)
	for _, e := range episodes {
		assert.Equal(t, storage.EpisodeStatusPending, e.State())
	}

	// pending episodes aren't picked up until they're queued
	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestManager_QueueEpisode(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, ctx)
	m := newTestManager(t, store, testConfig(t), nil, nil)
	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
	seasonID := createSeason(t, ctx, store, animeID, ptr(int32(1)))

	newEpisode := func(number int32, status storage.EpisodeStatus) int32 {
		return createEpisode(t, ctx, store, model.Episode{
			AnimeID:       animeID,
			SeasonID:      ptr(seasonID),
			SeasonNumber:  ptr(int32(1)),
			EpisodeNumber: number,
			Status:        string(status),
		})
	}

	t.Run("pending episode", func(t *testing.T) {
		id := newEpisode(1, storage.EpisodeStatusPending)

		jobID, err := m.QueueEpisode(ctx, int64(id))
		require.NoError(t, err)

		job, err := store.GetJob(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, string(storage.EpisodeIngest), job.Type)
		assert.Equal(t, ptr(id), job.EpisodeID)
		assert.Equal(t, ptr(animeID), job.AnimeID)
		assert.Equal(t, storage.JobStatePending, job.State)

		assert.Equal(t, storage.EpisodeStatusPendingDownload, getEpisode(t, ctx, store, id).State())

		_, err = m.QueueEpisode(ctx, int64(id))
		assert.ErrorIs(t, err, storage.ErrJobAlreadyPending)
	})

	t.Run("ready episode is queued again", func(t *testing.T) {
		id := newEpisode(2, storage.EpisodeStatusReady)

		_, err := m.QueueEpisode(ctx, int64(id))
		require.NoError(t, err)
		assert.Equal(t, storage.EpisodeStatusPendingDownload, getEpisode(t, ctx, store, id).State())
	})

	t.Run("episode mid transfer", func(t *testing.T) {
		id := newEpisode(3, storage.EpisodeStatusDownloading)

		_, err := m.QueueEpisode(ctx, int64(id))
		assert.ErrorIs(t, err, machine.ErrInvalidTransition)
	})

	t.Run("unknown episode", func(t *testing.T) {
		_, err := m.QueueEpisode(ctx, 404)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestManager_AddAnime(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, ctx)
	m := newTestManager(t, store, testConfig(t), nil, nil)

	anime, err := m.AddAnime(ctx, " Frieren ", "")
	require.NoError(t, err)
	assert.Equal(t, "Frieren", anime.Title)
	assert.Equal(t, ptr("frieren"), anime.Slug)
	assert.Nil(t, anime.SourceTemplate)

	anime, err = m.AddAnime(ctx, "Frieren", "https://alt.example.com/{slug}/{episode}")
	require.NoError(t, err)
	assert.Equal(t, ptr("frieren-2"), anime.Slug)

	_, err = m.AddAnime(ctx, "Bad", "https://alt.example.com/{show}")
	assert.ErrorIs(t, err, source.ErrInvalidTemplate)

	_, err = m.AddAnime(ctx, "  ", "")
	assert.Error(t, err)

	other, err := m.AddAnime(ctx, "Dungeon Meshi", "")
	require.NoError(t, err)
	assert.Equal(t, int32(3), other.ID)

	// collisions are suffixed with the anime's own id
	anime, err = m.AddAnime(ctx, "Frieren", "")
	require.NoError(t, err)
	assert.Equal(t, int32(4), anime.ID)
	assert.Equal(t, ptr("frieren-4"), anime.Slug)

	all, err := m.ListAnime(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
