package sqlite

import (
	"context"
	"testing"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/machine"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpisodeStorage(t *testing.T) {
	ctx := context.Background()
	store := initSqlite(t, ctx)
	animeID := createAnime(t, ctx, store, "X")
	seasonID, err := store.CreateSeason(ctx, model.Season{AnimeID: int32(animeID), SeasonNumber: ptr(int32(1))})
	require.NoError(t, err)

	id, err := store.CreateEpisode(ctx, model.Episode{
		AnimeID:       int32(animeID),
		SeasonID:      ptr(int32(seasonID)),
		SeasonNumber:  ptr(int32(1)),
		EpisodeNumber: 2,
		Title:         ptr("The Priest's Lie"),
	})
	require.NoError(t, err)

	episode, err := store.GetEpisode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.EpisodeStatusPending, episode.State())
	assert.Nil(t, episode.CanonicalURL)
	assert.Equal(t, "The Priest's Lie", *episode.Title)

	_, err = store.GetEpisode(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	t.Run("episode number unique per season", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, model.Episode{
			AnimeID:       int32(animeID),
			SeasonID:      ptr(int32(seasonID)),
			SeasonNumber:  ptr(int32(1)),
			EpisodeNumber: 2,
		})
		assert.ErrorIs(t, err, storage.ErrConflict)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := store.CreateEpisode(ctx, model.Episode{AnimeID: int32(animeID), EpisodeNumber: 7, Status: "lost"})
		assert.Error(t, err)
	})
}

func TestListEpisodes(t *testing.T) {
	ctx := context.Background()
	store := initSqlite(t, ctx)
	animeID := createAnime(t, ctx, store, "X")

	for _, e := range []model.Episode{
		{AnimeID: int32(animeID), SeasonNumber: ptr(int32(2)), EpisodeNumber: 1},
		{AnimeID: int32(animeID), EpisodeNumber: 3},
		{AnimeID: int32(animeID), SeasonNumber: ptr(int32(1)), EpisodeNumber: 2, Status: string(storage.EpisodeStatusPendingDownload)},
		{AnimeID: int32(animeID), SeasonNumber: ptr(int32(1)), EpisodeNumber: 1},
	} {
		_, err := store.CreateEpisode(ctx, e)
		require.NoError(t, err)
	}

	episodes, err := store.ListEpisodes(ctx, table.Episode.AnimeID.EQ(sqlite.Int64(animeID)))
	require.NoError(t, err)
	require.Len(t, episodes, 4)

	var order [][2]int32
	for _, e := range episodes {
		season := int32(0)
		if e.SeasonNumber != nil {
			season = *e.SeasonNumber
		}
		order = append(order, [2]int32{season, e.EpisodeNumber})
	}
	assert.Equal(t, [][2]int32{{1, 1}, {1, 2}, {2, 1}, {0, 3}}, order)

	pending, err := store.ListEpisodes(ctx,
		table.Episode.AnimeID.EQ(sqlite.Int64(animeID)),
		table.Episode.Status.EQ(sqlite.String(string(storage.EpisodeStatusPendingDownload))),
	)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int32(2), pending[0].EpisodeNumber)
}

func TestUpdateEpisodeStatus(t *testing.T) {
	ctx := context.Background()
	store := initSqlite(t, ctx)
	animeID := createAnime(t, ctx, store, "X")

	id, err := store.CreateEpisode(ctx, model.Episode{AnimeID: int32(animeID), EpisodeNumber: 1, Status: string(storage.EpisodeStatusPendingDownload)})
	require.NoError(t, err)

	require.NoError(t, store.UpdateEpisodeStatus(ctx, id, storage.EpisodeStatusDownloading, nil))
	require.NoError(t, store.UpdateEpisodeStatus(ctx, id, storage.EpisodeStatusError, ptr("connection reset")))

	episode, err := store.GetEpisode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.EpisodeStatusError, episode.State())
	assert.Equal(t, "connection reset", *episode.ErrorMessage)

	t.Run("invalid transition is rejected", func(t *testing.T) {
		err := store.UpdateEpisodeStatus(ctx, id, storage.EpisodeStatusUploading, nil)
		assert.ErrorIs(t, err, machine.ErrInvalidTransition)

		episode, err := store.GetEpisode(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, storage.EpisodeStatusError, episode.State())
	})

	t.Run("retry clears the error", func(t *testing.T) {
		require.NoError(t, store.UpdateEpisodeStatus(ctx, id, storage.EpisodeStatusDownloading, nil))
		episode, err := store.GetEpisode(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, episode.ErrorMessage)
	})

	t.Run("missing episode", func(t *testing.T) {
		err := store.UpdateEpisodeStatus(ctx, 999, storage.EpisodeStatusDownloading, nil)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestMarkEpisodeReady(t *testing.T) {
	ctx := context.Background()
	store := initSqlite(t, ctx)
	animeID := createAnime(t, ctx, store, "X")

	id, err := store.CreateEpisode(ctx, model.Episode{AnimeID: int32(animeID), EpisodeNumber: 5, Status: string(storage.EpisodeStatusUploading), ErrorMessage: ptr("old failure")})
	require.NoError(t, err)

	require.NoError(t, store.MarkEpisodeReady(ctx, id, "https://cdn.example.com/x/season-2/episode-5.mp4"))

	episode, err := store.GetEpisode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.EpisodeStatusReady, episode.State())
	assert.Equal(t, "https://cdn.example.com/x/season-2/episode-5.mp4", *episode.CanonicalURL)
	assert.Nil(t, episode.ErrorMessage)

	// ready can't move to ready again
	err = store.MarkEpisodeReady(ctx, id, "https://cdn.example.com/x/season-2/episode-5.mp4")
	assert.ErrorIs(t, err, machine.ErrInvalidTransition)

	t.Run("downloading can't skip upload", func(t *testing.T) {
		id, err := store.CreateEpisode(ctx, model.Episode{AnimeID: int32(animeID), EpisodeNumber: 6, Status: string(storage.EpisodeStatusDownloading)})
		require.NoError(t, err)
		assert.ErrorIs(t, store.MarkEpisodeReady(ctx, id, "https://cdn.example.com/x/season-2/episode-6.mp4"), machine.ErrInvalidTransition)
	})
}

func TestUpdateEpisodeSeason(t *testing.T) {
	ctx := context.Background()
	store := initSqlite(t, ctx)
	animeID := createAnime(t, ctx, store, "X")
	seasonID, err := store.CreateSeason(ctx, model.Season{AnimeID: int32(animeID), SeasonNumber: ptr(int32(1))})
	require.NoError(t, err)

	id, err := store.CreateEpisode(ctx, model.Episode{
		AnimeID:       int32(animeID),
		EpisodeNumber: 4,
		Status:        string(storage.EpisodeStatusReady),
		CanonicalURL:  ptr("https://cdn.example.com/x/season-1/episode-4.mp4"),
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateEpisodeSeason(ctx, id, ptr(int32(seasonID)), ptr(int32(1))))

	episode, err := store.GetEpisode(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int32(seasonID), *episode.SeasonID)
	assert.Equal(t, int32(1), *episode.SeasonNumber)
	assert.Equal(t, storage.EpisodeStatusReady, episode.State())
	assert.Equal(t, "https://cdn.example.com/x/season-1/episode-4.mp4", *episode.CanonicalURL)

	assert.ErrorIs(t, store.UpdateEpisodeSeason(ctx, 999, nil, nil), storage.ErrNotFound)
}
