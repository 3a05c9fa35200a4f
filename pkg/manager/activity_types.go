package manager

import "time"

type ActivityResponse struct {
	Episodes []*ActiveEpisode `json:"episodes"`
	Jobs     []*ActiveJob     `json:"jobs"`
	Runs     []RunStatus      `json:"runs"`
}

type ActiveEpisode struct {
	ID            int32     `json:"id"`
	AnimeID       int32     `json:"animeID"`
	SeasonNumber  *int32    `json:"seasonNumber"`
	EpisodeNumber int32     `json:"episodeNumber"`
	Status        string    `json:"status"`
	StateSince    time.Time `json:"stateSince"`
	Duration      string    `json:"duration"`
}

type ActiveJob struct {
	ID        int32     `json:"id"`
	Type      string    `json:"type"`
	State     string    `json:"state"`
	AnimeID   *int32    `json:"animeID,omitempty"`
	EpisodeID *int32    `json:"episodeID,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
	Duration  string    `json:"duration"`
}

type FailuresResponse struct {
	Failures []*FailureItem `json:"failures"`
}

type FailureItem struct {
	Type     string    `json:"type"`
	ID       int32     `json:"id"`
	Title    string    `json:"title"`
	State    string    `json:"state"`
	FailedAt time.Time `json:"failedAt"`
	Ago      string    `json:"ago"`
	Error    string    `json:"error,omitempty"`
	// Retryable is false for episodes whose source is gone
	Retryable bool `json:"retryable"`
}
