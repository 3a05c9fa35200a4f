package manager

import (
	"time"

	"github.com/kasuboski/animez/pkg/storage"
)

// TriggerJobRequest represents the request to manually trigger a job
type TriggerJobRequest struct {
	Type      string `json:"type"`
	AnimeID   *int32 `json:"animeID,omitempty"`
	EpisodeID *int32 `json:"episodeID,omitempty"`
}

// JobResponse represents a single job in API responses
type JobResponse struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	State     string     `json:"state"`
	AnimeID   *int32     `json:"animeID,omitempty"`
	EpisodeID *int32     `json:"episodeID,omitempty"`
	CreatedAt *time.Time `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
	Error     *string    `json:"error,omitempty"`
}

// JobListResponse represents a list of jobs in API responses
type JobListResponse struct {
	Jobs  []JobResponse `json:"jobs"`
	Count int           `json:"count"`
}

// ToJobResponse converts a storage.Job to a JobResponse
func ToJobResponse(job *storage.Job) JobResponse {
	return JobResponse{
		ID:        int64(job.ID),
		Type:      job.Type,
		State:     string(job.State),
		AnimeID:   job.AnimeID,
		EpisodeID: job.EpisodeID,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Error:     job.Error,
	}
}

func ToJobListResponse(jobs []*storage.Job) JobListResponse {
	resp := JobListResponse{Jobs: make([]JobResponse, len(jobs)), Count: len(jobs)}
	for i, job := range jobs {
		resp.Jobs[i] = ToJobResponse(job)
	}
	return resp
}
