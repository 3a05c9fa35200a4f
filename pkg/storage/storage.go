package storage

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/machine"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
)

var (
	ErrNotFound          = errors.New("not found in storage")
	ErrJobAlreadyPending = errors.New("job of this type already pending")
	ErrConflict          = errors.New("conflicts with an existing record")
)

type Storage interface {
	AnimeStorage
	SeasonStorage
	EpisodeStorage
	JobStorage
	Close() error
}

type AnimeStorage interface {
	CreateAnime(ctx context.Context, anime model.Anime) (int64, error)
	GetAnime(ctx context.Context, id int64) (*model.Anime, error)
	GetAnimeBySlug(ctx context.Context, slug string) (*model.Anime, error)
	ListAnime(ctx context.Context) ([]*model.Anime, error)
	// SetAnimeSlug stores slug only if the anime has none yet. It reports whether the slug was written.
	SetAnimeSlug(ctx context.Context, id int64, slug string) (bool, error)
}

type SeasonStorage interface {
	CreateSeason(ctx context.Context, season model.Season) (int64, error)
	GetSeason(ctx context.Context, where sqlite.BoolExpression) (*model.Season, error)
	ListSeasons(ctx context.Context, where ...sqlite.BoolExpression) ([]*model.Season, error)
	UpdateSeasonNumber(ctx context.Context, id int64, number *int32) error
	UpdateSeasonEpisodeCount(ctx context.Context, id int64, count int32) error
	DeleteSeason(ctx context.Context, id int64) error
}

type EpisodeStatus string

const (
	EpisodeStatusPending         EpisodeStatus = "pending"
	EpisodeStatusPendingDownload EpisodeStatus = "pending_download"
	EpisodeStatusDownloading     EpisodeStatus = "downloading"
	EpisodeStatusUploading       EpisodeStatus = "uploading"
	EpisodeStatusReady           EpisodeStatus = "ready"
	EpisodeStatusSourceMissing   EpisodeStatus = "source_missing"
	EpisodeStatusError           EpisodeStatus = "error"
	EpisodeStatusPaused          EpisodeStatus = "paused"
)

// EpisodeStatuses lists every status in lifecycle order
var EpisodeStatuses = []EpisodeStatus{
	EpisodeStatusPending,
	EpisodeStatusPendingDownload,
	EpisodeStatusDownloading,
	EpisodeStatusUploading,
	EpisodeStatusReady,
	EpisodeStatusSourceMissing,
	EpisodeStatusError,
	EpisodeStatusPaused,
}

// Terminal reports whether no further automatic transition happens from s
func (s EpisodeStatus) Terminal() bool {
	return s == EpisodeStatusReady || s == EpisodeStatusSourceMissing || s == EpisodeStatusError
}

type Episode struct {
	model.Episode
}

func (e Episode) State() EpisodeStatus {
	return EpisodeStatus(e.Status)
}

// Machine describes the allowed status transitions.
// A new attempt always re-enters downloading so stale downloading or uploading rows can be reclaimed.
// Moving straight to ready is only used when the stored url already matches.
func (e Episode) Machine() *machine.StateMachine[EpisodeStatus] {
	return machine.New(e.State(),
		machine.From(EpisodeStatusPending).To(EpisodeStatusPendingDownload, EpisodeStatusDownloading, EpisodeStatusReady, EpisodeStatusPaused),
		machine.From(EpisodeStatusPendingDownload).To(EpisodeStatusDownloading, EpisodeStatusReady, EpisodeStatusPaused),
		machine.From(EpisodeStatusDownloading).To(EpisodeStatusDownloading, EpisodeStatusUploading, EpisodeStatusSourceMissing, EpisodeStatusError),
		machine.From(EpisodeStatusUploading).To(EpisodeStatusDownloading, EpisodeStatusReady, EpisodeStatusError),
		machine.From(EpisodeStatusReady).To(EpisodeStatusPendingDownload, EpisodeStatusDownloading),
		machine.From(EpisodeStatusSourceMissing).To(EpisodeStatusPendingDownload, EpisodeStatusDownloading, EpisodeStatusReady),
		machine.From(EpisodeStatusError).To(EpisodeStatusPendingDownload, EpisodeStatusDownloading, EpisodeStatusReady),
		machine.From(EpisodeStatusPaused).To(EpisodeStatusPendingDownload),
	)
}

// StatusesInto returns every status that may transition to target
func StatusesInto(target EpisodeStatus) []EpisodeStatus {
	from := make([]EpisodeStatus, 0, len(EpisodeStatuses))
	for _, s := range EpisodeStatuses {
		e := Episode{Episode: model.Episode{Status: string(s)}}
		if e.Machine().Can(target) {
			from = append(from, s)
		}
	}
	return from
}

type EpisodeStorage interface {
	CreateEpisode(ctx context.Context, episode model.Episode) (int64, error)
	GetEpisode(ctx context.Context, id int64) (*Episode, error)
	ListEpisodes(ctx context.Context, where ...sqlite.BoolExpression) ([]*Episode, error)
	// UpdateEpisodeStatus moves an episode to status if the transition is allowed from its current status.
	// errorMessage replaces the stored message; nil clears it.
	UpdateEpisodeStatus(ctx context.Context, id int64, status EpisodeStatus, errorMessage *string) error
	// MarkEpisodeReady stores the canonical url, sets ready and clears the error in one statement
	MarkEpisodeReady(ctx context.Context, id int64, canonicalURL string) error
	UpdateEpisodeSeason(ctx context.Context, id int64, seasonID *int32, seasonNumber *int32) error
}

type JobState string

const (
	JobStateNew       JobState = ""
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateError     JobState = "error"
	JobStateDone      JobState = "done"
	JobStateCancelled JobState = "cancelled"
)

type JobType string

const (
	// EpisodeIngest fetches and uploads a single episode
	EpisodeIngest JobType = "EpisodeIngest"
	// AnimeIngest runs a full ingestion for an anime
	AnimeIngest JobType = "AnimeIngest"
	// PendingDownloads sweeps every anime with pending_download episodes
	PendingDownloads JobType = "PendingDownloads"
	// SeasonReconcile repairs season layout for every anime
	SeasonReconcile JobType = "SeasonReconcile"
)

var JobTypes = []JobType{EpisodeIngest, AnimeIngest, PendingDownloads, SeasonReconcile}

func (t JobType) Valid() bool {
	return slices.Contains(JobTypes, t)
}

type Job struct {
	model.Job
	State     JobState   `alias:"job_transition.to_state" json:"state"`
	Error     *string    `alias:"job_transition.error" json:"error"`
	UpdatedAt *time.Time `alias:"job_transition.updated_at" json:"updatedAt"`
}

type JobTransition model.JobTransition

func (j Job) Machine() *machine.StateMachine[JobState] {
	return machine.New(j.State,
		machine.From(JobStateNew).To(JobStatePending),
		machine.From(JobStatePending).To(JobStateRunning, JobStateCancelled),
		machine.From(JobStateRunning).To(JobStateError, JobStateDone, JobStateCancelled),
	)
}

type JobStorage interface {
	// CreateJob stores a job. A pending job for the same type and target returns ErrJobAlreadyPending.
	CreateJob(ctx context.Context, job Job, initialState JobState) (int64, error)
	GetJob(ctx context.Context, id int64) (*Job, error)
	ListJobs(ctx context.Context, where ...sqlite.BoolExpression) ([]*Job, error)
	UpdateJobState(ctx context.Context, id int64, state JobState, errorMsg *string) error
}
