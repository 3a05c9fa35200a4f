package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasuboski/animez/config"
	fetchMocks "github.com/kasuboski/animez/pkg/fetch/mocks"
	storeMocks "github.com/kasuboski/animez/pkg/objectstore/mocks"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func getJob(t *testing.T, ctx context.Context, store storage.Storage, id int64) *storage.Job {
	t.Helper()
	job, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	return job
}

func TestScheduler_CreateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid job type", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)

		id, err := scheduler.CreateJob(ctx, "my-fake-job", nil, nil)
		assert.Equal(t, int64(0), id)
		assert.ErrorContains(t, err, "invalid job type")
	})

	t.Run("create job and duplicate pending job", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)

		id, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, int64(0), id)

		jobs, err := scheduler.listPendingJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, int32(id), jobs[0].ID)
		assert.Equal(t, string(storage.SeasonReconcile), jobs[0].Type)
		assert.NotNil(t, jobs[0].CreatedAt)

		id, err = scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		assert.ErrorIs(t, err, storage.ErrJobAlreadyPending)
		assert.Equal(t, int64(0), id)
	})

	t.Run("same type for different anime", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)
		first := createAnime(t, ctx, store, model.Anime{Title: "X"})
		second := createAnime(t, ctx, store, model.Anime{Title: "Y"})

		_, err := scheduler.CreateJob(ctx, storage.AnimeIngest, ptr(first), nil)
		require.NoError(t, err)
		_, err = scheduler.CreateJob(ctx, storage.AnimeIngest, ptr(second), nil)
		require.NoError(t, err)

		jobType := storage.AnimeIngest
		jobs, err := scheduler.ListJobs(ctx, &jobType)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})
}

func TestScheduler_runPendingJobs(t *testing.T) {
	ctx := context.Background()

	t.Run("executes in creation order", func(t *testing.T) {
		store := newStore(t, ctx)

		var order []storage.JobType
		record := func(ctx context.Context, job *storage.Job) error {
			order = append(order, storage.JobType(job.Type))
			return nil
		}
		scheduler := NewScheduler(store, config.Manager{}, map[storage.JobType]JobExecutor{
			storage.SeasonReconcile:  record,
			storage.PendingDownloads: record,
		})

		reconcileID, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)
		downloadsID, err := scheduler.CreateJob(ctx, storage.PendingDownloads, nil, nil)
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		assert.Equal(t, []storage.JobType{storage.SeasonReconcile, storage.PendingDownloads}, order)
		assert.Equal(t, storage.JobStateDone, getJob(t, ctx, store, reconcileID).State)
		assert.Equal(t, storage.JobStateDone, getJob(t, ctx, store, downloadsID).State)

		pending, err := scheduler.listPendingJobs(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("executor error is recorded", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, map[storage.JobType]JobExecutor{
			storage.SeasonReconcile: func(ctx context.Context, job *storage.Job) error {
				return errors.New("boom")
			},
		})

		id, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		job := getJob(t, ctx, store, id)
		assert.Equal(t, storage.JobStateError, job.State)
		require.NotNil(t, job.Error)
		assert.Equal(t, "boom", *job.Error)
	})

	t.Run("missing executor", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)

		id, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		job := getJob(t, ctx, store, id)
		assert.Equal(t, storage.JobStateError, job.State)
		require.NotNil(t, job.Error)
		assert.Contains(t, *job.Error, "no executor")
	})
}

func TestScheduler_CancelJob(t *testing.T) {
	ctx := context.Background()

	t.Run("pending job", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)

		id, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)

		require.NoError(t, scheduler.CancelJob(ctx, id))
		assert.Equal(t, storage.JobStateCancelled, getJob(t, ctx, store, id).State)
	})

	t.Run("running job", func(t *testing.T) {
		store := newStore(t, ctx)
		started := make(chan struct{})
		scheduler := NewScheduler(store, config.Manager{}, map[storage.JobType]JobExecutor{
			storage.SeasonReconcile: func(ctx context.Context, job *storage.Job) error {
				close(started)
				<-ctx.Done()
				return ctx.Err()
			},
		})

		id, err := scheduler.CreateJob(ctx, storage.SeasonReconcile, nil, nil)
		require.NoError(t, err)
		jobs, err := scheduler.listPendingJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		done := make(chan struct{})
		go func() {
			defer close(done)
			scheduler.executeJob(ctx, jobs[0])
		}()

		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("job never started")
		}

		require.NoError(t, scheduler.CancelJob(ctx, id))
		<-done
		assert.Equal(t, storage.JobStateCancelled, getJob(t, ctx, store, id).State)
	})

	t.Run("unknown job", func(t *testing.T) {
		store := newStore(t, ctx)
		scheduler := NewScheduler(store, config.Manager{}, nil)

		err := scheduler.CancelJob(ctx, 12)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestScheduler_checkAndScheduleJob(t *testing.T) {
	ctx := context.Background()
	store := newStore(t, ctx)
	scheduler := NewScheduler(store, config.Manager{}, map[storage.JobType]JobExecutor{
		storage.SeasonReconcile: func(ctx context.Context, job *storage.Job) error { return nil },
	})
	jobType := storage.SeasonReconcile

	scheduler.checkAndScheduleJob(ctx, jobType, time.Hour)
	jobs, err := scheduler.ListJobs(ctx, &jobType)
	require.NoError(t, err)
	require.Len(t, jobs, 1, "first check schedules immediately")

	scheduler.checkAndScheduleJob(ctx, jobType, time.Hour)
	jobs, err = scheduler.ListJobs(ctx, &jobType)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "pending job blocks a new one")

	scheduler.runPendingJobs(ctx)
	scheduler.checkAndScheduleJob(ctx, jobType, time.Hour)
	jobs, err = scheduler.ListJobs(ctx, &jobType)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "interval hasn't elapsed")
}

func TestScheduler_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newStore(t, ctx)

	ran := make(chan struct{}, 1)
	scheduler := NewScheduler(store, config.Manager{Jobs: config.Jobs{
		SeasonReconcile:     time.Hour,
		JobScheduleInterval: 10 * time.Millisecond,
		PollInterval:        10 * time.Millisecond,
	}}, map[storage.JobType]JobExecutor{
		storage.SeasonReconcile: func(ctx context.Context, job *storage.Job) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	errc := make(chan error, 1)
	go func() { errc <- scheduler.Run(ctx) }()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("periodic job never ran")
	}

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler didn't stop")
	}
}

func TestManager_Executors(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t, ctx)
	animeID, ids := seedSeason(t, ctx, store, 2)

	fetcher := fetchMocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeFetched).Times(2)
	uploader := storeMocks.NewMockUploader(ctrl)
	uploader.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	m := newTestManager(t, store, testConfig(t), fetcher, uploader)
	scheduler := NewScheduler(store, config.Manager{}, m.Executors())

	t.Run("episode ingest", func(t *testing.T) {
		id, err := scheduler.CreateJob(ctx, storage.EpisodeIngest, ptr(animeID), ptr(ids[0]))
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		assert.Equal(t, storage.JobStateDone, getJob(t, ctx, store, id).State)
		assert.Equal(t, storage.EpisodeStatusReady, getEpisode(t, ctx, store, ids[0]).State())
	})

	t.Run("pending downloads", func(t *testing.T) {
		id, err := scheduler.CreateJob(ctx, storage.PendingDownloads, nil, nil)
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		assert.Equal(t, storage.JobStateDone, getJob(t, ctx, store, id).State)
		assert.Equal(t, storage.EpisodeStatusReady, getEpisode(t, ctx, store, ids[1]).State())
	})

	t.Run("episode ingest without an episode", func(t *testing.T) {
		id, err := scheduler.CreateJob(ctx, storage.EpisodeIngest, ptr(animeID), nil)
		require.NoError(t, err)

		scheduler.runPendingJobs(ctx)

		assert.Equal(t, storage.JobStateError, getJob(t, ctx, store, id).State)
	})
}
