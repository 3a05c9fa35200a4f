package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kasuboski/animez/pkg/fetch"
	fetchMocks "github.com/kasuboski/animez/pkg/fetch/mocks"
	storeMocks "github.com/kasuboski/animez/pkg/objectstore/mocks"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// seedSeason creates an anime titled X with one season of pending_download episodes
func seedSeason(t *testing.T, ctx context.Context, store storage.Storage, count int) (int32, []int32) {
	t.Helper()

	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
	seasonID := createSeason(t, ctx, store, animeID, ptr(int32(1)))

	ids := make([]int32, count)
	for i := range ids {
		ids[i] = createEpisode(t, ctx, store, model.Episode{
			AnimeID:       animeID,
			SeasonID:      ptr(seasonID),
			SeasonNumber:  ptr(int32(1)),
			EpisodeNumber: int32(i + 1),
			Status:        string(storage.EpisodeStatusPendingDownload),
		})
	}
	return animeID, ids
}

func TestIngestAnime_AlreadyUploaded(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)

	// no expectations: any fetch or upload fails the test
	fetcher := fetchMocks.NewMockFetcher(ctrl)
	uploader := storeMocks.NewMockUploader(ctrl)
	m := newTestManager(t, store, testConfig(t), fetcher, uploader)

	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
	seasonID := createSeason(t, ctx, store, animeID, ptr(int32(2)))
	url := "https://cdn/x/season-2/episode-5.mp4"
	episodeID := createEpisode(t, ctx, store, model.Episode{
		AnimeID:       animeID,
		SeasonID:      ptr(seasonID),
		SeasonNumber:  ptr(int32(2)),
		EpisodeNumber: 5,
		CanonicalURL:  ptr(url),
		Status:        string(storage.EpisodeStatusPendingDownload),
	})

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Ready)
	assert.Equal(t, 0, result.Failed)

	episode := getEpisode(t, ctx, store, episodeID)
	assert.Equal(t, storage.EpisodeStatusReady, episode.State())
	assert.Equal(t, url, *episode.CanonicalURL)

	t.Run("second run is a no-op", func(t *testing.T) {
		result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID, Mode: ModeRepair})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped)

		episode := getEpisode(t, ctx, store, episodeID)
		assert.Equal(t, storage.EpisodeStatusReady, episode.State())
		assert.Equal(t, url, *episode.CanonicalURL)
		assert.Equal(t, episode.UpdatedAt, getEpisode(t, ctx, store, episodeID).UpdatedAt)
	})

	t.Run("single episode short circuits too", func(t *testing.T) {
		result, err := m.IngestEpisode(ctx, int64(episodeID))
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, storage.EpisodeStatusReady, result.Status)
		assert.Equal(t, url, result.CanonicalURL)
	})
}

func TestIngestAnime_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, ids := seedSeason(t, ctx, store, 5)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), "https://videos.example.com/x/episode-2", gomock.Any()).
		Return(errors.New("connection reset by peer")).
		Times(DefaultMaxAttempts)
	fetcher.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(writeFetched).
		Times(4)

	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(4)

	m := newTestManager(t, store, testConfig(t), fetcher, uploader)

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID, Mode: ModePending})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 4, result.Ready)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.SourceMissing)
	require.Len(t, result.Results, 5)
	assert.Equal(t, DefaultMaxAttempts, result.Results[1].Attempts)

	for i, id := range ids {
		episode := getEpisode(t, ctx, store, id)
		if i == 1 {
			assert.Equal(t, storage.EpisodeStatusError, episode.State())
			require.NotNil(t, episode.ErrorMessage)
			assert.Contains(t, *episode.ErrorMessage, "connection reset by peer")
			assert.Nil(t, episode.CanonicalURL)
			continue
		}
		assert.Equal(t, storage.EpisodeStatusReady, episode.State())
		require.NotNil(t, episode.CanonicalURL)
		assert.Equal(t, m.Addresser().EpisodeURL("x", 1, episode.EpisodeNumber), *episode.CanonicalURL)
		assert.Nil(t, episode.ErrorMessage)
	}

	runs := m.ListRuns()
	require.Len(t, runs, 1)
	status := runs[0].Status()
	assert.True(t, status.Finished())
	assert.Equal(t, 5, status.Progress.Total)
	assert.Equal(t, 5, status.Progress.Completed)
	assert.Equal(t, 4, status.Progress.Ready)
	assert.Equal(t, 1, status.Progress.Failed)
	assert.Equal(t, 0, status.Progress.Downloading)
	assert.Equal(t, 0, status.Progress.Uploading)
}

func TestIngestAnime_SourceMissingIsNotRetried(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, ids := seedSeason(t, ctx, store, 1)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&fetch.ToolError{ExitCode: 1, Stderr: "ERROR: [generic] Video unavailable"}).
		Times(1)

	m := newTestManager(t, store, testConfig(t), fetcher, storeMocks.NewMockUploader(ctrl))

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SourceMissing)
	assert.Equal(t, 0, result.Failed)

	episode := getEpisode(t, ctx, store, ids[0])
	assert.Equal(t, storage.EpisodeStatusSourceMissing, episode.State())
	require.NotNil(t, episode.ErrorMessage)
	assert.Contains(t, *episode.ErrorMessage, "Video unavailable")
}

func TestIngestAnime_RetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, ids := seedSeason(t, ctx, store, 1)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	gomock.InOrder(
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("timeout")),
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeFetched),
	)
	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), "x/season-1/episode-1.mp4").Return(nil)

	m := newTestManager(t, store, testConfig(t), fetcher, uploader)

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ready)
	assert.Equal(t, 2, result.Results[0].Attempts)

	episode := getEpisode(t, ctx, store, ids[0])
	assert.Equal(t, storage.EpisodeStatusReady, episode.State())
	assert.Nil(t, episode.ErrorMessage)
}

func TestIngestAnime_BoundedConcurrency(t *testing.T) {
	tests := []struct {
		name   string
		local  int
		global int
		want   int32
	}{
		{name: "run limit", local: 2, global: 4, want: 2},
		{name: "process limit", local: 4, global: 1, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			ctrl := gomock.NewController(t)
			store := newStore(t, ctx)
			animeID, _ := seedSeason(t, ctx, store, 6)

			var active, peak atomic.Int32
			fetcher := fetchMocks.NewMockFetcher(ctrl)
			fetcher.EXPECT().
				Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(ctx context.Context, sourceURL, outputPath string) error {
					n := active.Add(1)
					defer active.Add(-1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(20 * time.Millisecond)
					return writeFetched(ctx, sourceURL, outputPath)
				}).
				Times(6)

			uploader := storeMocks.NewMockUploader(ctrl)
			uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(6)

			cfg := testConfig(t)
			cfg.Ingest.Concurrency = tt.local
			cfg.Ingest.GlobalConcurrency = tt.global
			m := newTestManager(t, store, cfg, fetcher, uploader)

			result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
			require.NoError(t, err)
			assert.Equal(t, 6, result.Ready)
			assert.LessOrEqual(t, peak.Load(), tt.want)
			assert.GreaterOrEqual(t, peak.Load(), int32(1))
		})
	}
}

func TestIngestAnime_PanicIsRecorded(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, ids := seedSeason(t, ctx, store, 3)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), "https://videos.example.com/x/episode-2", gomock.Any()).
		DoAndReturn(func(ctx context.Context, sourceURL, outputPath string) error {
			_ = writeFetched(ctx, sourceURL, outputPath)
			panic("tool wrapper exploded")
		}).
		Times(DefaultMaxAttempts)
	fetcher.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(writeFetched).
		Times(2)

	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	cfg := testConfig(t)
	m := newTestManager(t, store, cfg, fetcher, uploader)

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Ready)
	assert.Equal(t, 1, result.Failed)

	episode := getEpisode(t, ctx, store, ids[1])
	assert.Equal(t, storage.EpisodeStatusError, episode.State())
	require.NotNil(t, episode.ErrorMessage)
	assert.Contains(t, *episode.ErrorMessage, "tool wrapper exploded")

	tmp := filepath.Join(cfg.Fetch.TempDir, "1", "season-1", "episode-2.mp4")
	assert.False(t, m.fs.FileExists(tmp))
}

func TestIngestAnime_TempFileRemoved(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, _ := seedSeason(t, ctx, store, 2)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), "https://videos.example.com/x/episode-1", gomock.Any()).
		DoAndReturn(writeFetched)
	fetcher.EXPECT().
		Fetch(gomock.Any(), "https://videos.example.com/x/episode-2", gomock.Any()).
		DoAndReturn(writeFetched)

	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), "x/season-1/episode-1.mp4").Return(nil)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), "x/season-1/episode-2.mp4").Return(errors.New("503 from storage"))

	cfg := testConfig(t)
	cfg.Ingest.MaxAttempts = 1
	m := newTestManager(t, store, cfg, fetcher, uploader)

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ready)
	assert.Equal(t, 1, result.Failed)

	for _, n := range []string{"episode-1.mp4", "episode-2.mp4"} {
		assert.False(t, m.fs.FileExists(filepath.Join(cfg.Fetch.TempDir, "1", "season-1", n)))
	}
}

func TestIngestAnime_SourceTemplate(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)

	animeID := createAnime(t, ctx, store, model.Anime{
		Title:          "X",
		SourceTemplate: ptr("https://alt.example.com/watch/{slug}/{season}/{episode}"),
	})
	seasonID := createSeason(t, ctx, store, animeID, ptr(int32(1)))
	createEpisode(t, ctx, store, model.Episode{
		AnimeID:       animeID,
		SeasonID:      ptr(seasonID),
		SeasonNumber:  ptr(int32(1)),
		EpisodeNumber: 3,
		Status:        string(storage.EpisodeStatusPendingDownload),
	})

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().
		Fetch(gomock.Any(), "https://alt.example.com/watch/x/1/3", gomock.Any()).
		DoAndReturn(writeFetched)
	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	m := newTestManager(t, store, testConfig(t), fetcher, uploader)

	result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Ready)
}

func TestIngestAnime_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing cdn host", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := newStore(t, ctx)
		animeID, _ := seedSeason(t, ctx, store, 1)

		cfg := testConfig(t)
		cfg.CDN.Host = ""
		m := newTestManager(t, store, cfg, fetchMocks.NewMockFetcher(ctrl), storeMocks.NewMockUploader(ctrl))

		_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
		assert.ErrorIs(t, err, ErrInvalidConfig)

		_, err = m.StartIngest(ctx, IngestRequest{AnimeID: animeID})
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Empty(t, m.ListRuns())
	})

	t.Run("malformed anime template", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := newStore(t, ctx)
		animeID := createAnime(t, ctx, store, model.Anime{Title: "X", SourceTemplate: ptr("https://alt.example.com/{show}/{episode}")})

		m := newTestManager(t, store, testConfig(t), fetchMocks.NewMockFetcher(ctrl), storeMocks.NewMockUploader(ctrl))

		_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("unknown mode", func(t *testing.T) {
		store := newStore(t, ctx)
		m := newTestManager(t, store, testConfig(t), nil, nil)

		_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: 1, Mode: "everything"})
		assert.ErrorIs(t, err, ErrInvalidMode)
	})

	t.Run("missing anime", func(t *testing.T) {
		store := newStore(t, ctx)
		m := newTestManager(t, store, testConfig(t), nil, nil)

		_, err := m.IngestAnime(ctx, IngestRequest{AnimeID: 9})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestIngestAnime_ReconcileFirst(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)

	animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
	for n := int32(1); n <= 3; n++ {
		createEpisode(t, ctx, store, model.Episode{
			AnimeID:       animeID,
			EpisodeNumber: n,
			Status:        string(storage.EpisodeStatusPendingDownload),
		})
	}

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeFetched).Times(3)
	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(3)

	t.Run("without reconcile the episodes can't be addressed", func(t *testing.T) {
		m := newTestManager(t, store, testConfig(t), fetcher, uploader)

		result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
		require.NoError(t, err)
		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 3, result.Skipped)
		assert.Nil(t, result.Reconcile)
	})

	t.Run("reconcile assigns a season first", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Ingest.ReconcileFirst = true
		m := newTestManager(t, store, cfg, fetcher, uploader)

		result, err := m.IngestAnime(ctx, IngestRequest{AnimeID: animeID})
		require.NoError(t, err)
		require.NotNil(t, result.Reconcile)
		assert.True(t, result.Reconcile.Success())
		assert.Equal(t, 1, result.Reconcile.SeasonsCreated)
		assert.Equal(t, 3, result.Ready)

		episodes, err := m.ListEpisodes(ctx, int64(animeID))
		require.NoError(t, err)
		require.Len(t, episodes, 3)
		for _, e := range episodes {
			require.NotNil(t, e.CanonicalURL)
			assert.Equal(t, m.Addresser().EpisodeURL("x", 1, e.EpisodeNumber), *e.CanonicalURL)
		}
	})
}

func TestStartIngest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, _ := seedSeason(t, ctx, store, 1)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeFetched)
	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	m := newTestManager(t, store, testConfig(t), fetcher, uploader)

	run, err := m.StartIngest(ctx, IngestRequest{AnimeID: animeID})
	require.NoError(t, err)
	// the run keeps going after the caller's context ends
	cancel()

	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	got, ok := m.GetRun(run.ID)
	require.True(t, ok)
	assert.Same(t, run, got)

	status := run.Status()
	assert.True(t, status.Finished())
	assert.Nil(t, status.Error)
	require.NotNil(t, status.Result)
	assert.Equal(t, 1, status.Result.Ready)
	assert.Equal(t, run.ID, status.Result.RunID)
}

func TestManager_ListRunsPrunesFinished(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.RunRetention = time.Hour
	m := New(nil, cfg, nil, nil, nil)

	old := newRun(IngestRequest{AnimeID: 1, Mode: ModePending})
	m.runs.Set(old.ID, old)
	old.finish(&IngestResult{RunID: old.ID}, nil)
	old.mu.Lock()
	old.finishedAt = ptr(time.Now().Add(-2 * time.Hour))
	old.mu.Unlock()

	recent := newRun(IngestRequest{AnimeID: 2, Mode: ModePending})
	m.runs.Set(recent.ID, recent)
	recent.finish(&IngestResult{RunID: recent.ID}, nil)

	running := newRun(IngestRequest{AnimeID: 3, Mode: ModePending})
	running.StartedAt = time.Now().Add(-3 * time.Hour)
	m.runs.Set(running.ID, running)

	runs := m.ListRuns()
	require.Len(t, runs, 2)
	assert.Same(t, recent, runs[0])
	assert.Same(t, running, runs[1])

	_, ok := m.GetRun(old.ID)
	assert.False(t, ok)
}

func TestIngestEpisode(t *testing.T) {
	ctx := context.Background()

	t.Run("single attempt", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := newStore(t, ctx)
		_, ids := seedSeason(t, ctx, store, 1)

		fetcher := fetchMocks.NewMockFetcher(ctrl)
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("network down")).Times(1)
		m := newTestManager(t, store, testConfig(t), fetcher, storeMocks.NewMockUploader(ctrl))

		result, err := m.IngestEpisode(ctx, int64(ids[0]))
		require.NoError(t, err)
		assert.Equal(t, storage.EpisodeStatusError, result.Status)
		assert.Equal(t, 1, result.Attempts)
		assert.Error(t, result.Err)
	})

	t.Run("episode without a season", func(t *testing.T) {
		store := newStore(t, ctx)
		animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
		id := createEpisode(t, ctx, store, model.Episode{AnimeID: animeID, EpisodeNumber: 1})
		m := newTestManager(t, store, testConfig(t), nil, nil)

		_, err := m.IngestEpisode(ctx, int64(id))
		assert.Error(t, err)
	})

	t.Run("paused episodes are not claimed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := newStore(t, ctx)
		animeID := createAnime(t, ctx, store, model.Anime{Title: "X"})
		seasonID := createSeason(t, ctx, store, animeID, ptr(int32(1)))
		id := createEpisode(t, ctx, store, model.Episode{
			AnimeID:       animeID,
			SeasonID:      ptr(seasonID),
			SeasonNumber:  ptr(int32(1)),
			EpisodeNumber: 1,
			Status:        string(storage.EpisodeStatusPaused),
		})
		m := newTestManager(t, store, testConfig(t), fetchMocks.NewMockFetcher(ctrl), storeMocks.NewMockUploader(ctrl))

		result, err := m.IngestEpisode(ctx, int64(id))
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, storage.EpisodeStatusPaused, result.Status)
	})
}

func TestDedupeEpisodes(t *testing.T) {
	episode := func(id int32, season *int32, number int32) *storage.Episode {
		return &storage.Episode{Episode: model.Episode{ID: id, AnimeID: 1, SeasonNumber: season, EpisodeNumber: number}}
	}

	items, unaddressable := dedupeEpisodes([]*storage.Episode{
		episode(1, ptr(int32(1)), 1),
		episode(2, ptr(int32(1)), 2),
		episode(3, ptr(int32(1)), 2),
		episode(4, ptr(int32(2)), 2),
		episode(5, nil, 3),
		episode(6, ptr(int32(0)), 4),
	})

	assert.Equal(t, 2, unaddressable)
	assert.Equal(t, []WorkItem{
		{AnimeID: 1, EpisodeID: 1, SeasonNumber: 1, EpisodeNumber: 1},
		{AnimeID: 1, EpisodeID: 2, SeasonNumber: 1, EpisodeNumber: 2},
		{AnimeID: 1, EpisodeID: 4, SeasonNumber: 2, EpisodeNumber: 2},
	}, items)
}
