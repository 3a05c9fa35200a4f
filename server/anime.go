package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/kasuboski/animez/pkg/pagination"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/oapi-codegen/nullable"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
)

// IngestRequestBody is the optional body of an ingest request
type IngestRequestBody struct {
	Mode         manager.Mode `json:"mode"`
	SeasonNumber *int32       `json:"seasonNumber,omitempty"`
}

type ReconcilePlanResponse struct {
	Layout  manager.SeasonLayout `json:"layout"`
	Changes diff.Changelog       `json:"changes"`
}

// EpisodeResponse is an episode with explicit nulls for fields that haven't been set
type EpisodeResponse struct {
	ID            int32                     `json:"id"`
	SeasonNumber  nullable.Nullable[int32]  `json:"seasonNumber"`
	EpisodeNumber int32                     `json:"episodeNumber"`
	Title         nullable.Nullable[string] `json:"title"`
	CanonicalURL  nullable.Nullable[string] `json:"canonicalURL"`
	Status        string                    `json:"status"`
	Error         nullable.Nullable[string] `json:"error,omitempty"`
}

type EpisodeListResponse struct {
	Episodes []EpisodeResponse `json:"episodes"`
	Meta     pagination.Meta   `json:"meta"`
}

func toNullable[T any](v *T) nullable.Nullable[T] {
	if v == nil {
		return nullable.NewNullNullable[T]()
	}
	return nullable.NewNullableWithValue(*v)
}

func toEpisodeResponse(e *storage.Episode) EpisodeResponse {
	resp := EpisodeResponse{
		ID:            e.ID,
		SeasonNumber:  toNullable(e.SeasonNumber),
		EpisodeNumber: e.EpisodeNumber,
		Title:         toNullable(e.Title),
		CanonicalURL:  toNullable(e.CanonicalURL),
		Status:        e.Status,
	}
	if e.ErrorMessage != nil {
		resp.Error = nullable.NewNullableWithValue(*e.ErrorMessage)
	}
	return resp
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// StartIngest kicks off an ingest run in the background and returns its initial status
func (s Server) StartIngest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		animeID, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid anime id", http.StatusBadRequest)
			return
		}

		var body IngestRequestBody
		b, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if len(b) > 0 {
			if err := json.Unmarshal(b, &body); err != nil {
				log.Debugw("invalid request body", zap.ByteString("body", b))
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		run, err := s.manager.StartIngest(r.Context(), manager.IngestRequest{
			AnimeID:      int32(animeID),
			SeasonNumber: body.SeasonNumber,
			Mode:         body.Mode,
		})
		if err != nil {
			log.Errorw("failed to start ingest", zap.Int64("anime_id", animeID), zap.Error(err))
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		log.Infow("started ingest run", zap.String("run_id", run.ID), zap.Int64("anime_id", animeID))
		writeResponse(w, http.StatusAccepted, GenericResponse{Response: run.Status()})
	}
}

// ReconcileSeasons repairs an anime's seasons, or only plans it with ?dryRun=true
func (s Server) ReconcileSeasons() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		animeID, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid anime id", http.StatusBadRequest)
			return
		}

		dryRun := false
		if v := r.URL.Query().Get("dryRun"); v != "" {
			dryRun, err = strconv.ParseBool(v)
			if err != nil {
				http.Error(w, "invalid dryRun parameter: must be a boolean", http.StatusBadRequest)
				return
			}
		}

		if dryRun {
			layout, changes, err := s.manager.PlanSeasons(r.Context(), animeID)
			if err != nil {
				log.Errorw("failed to plan seasons", zap.Int64("anime_id", animeID), zap.Error(err))
				writeErrorResponse(w, errorStatus(err), err)
				return
			}
			writeResponse(w, http.StatusOK, GenericResponse{Response: ReconcilePlanResponse{Layout: layout, Changes: changes}})
			return
		}

		result, err := s.manager.ReconcileSeasons(r.Context(), animeID)
		if err != nil {
			log.Errorw("failed to reconcile seasons", zap.Int64("anime_id", animeID), zap.Error(err))
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: result})
	}
}

// ListEpisodes lists an anime's episodes, paginated with page and pageSize
func (s Server) ListEpisodes() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		animeID, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid anime id", http.StatusBadRequest)
			return
		}

		params, err := ParsePaginationParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		episodes, err := s.manager.ListEpisodes(r.Context(), animeID)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				log.Errorw("failed to list episodes", zap.Int64("anime_id", animeID), zap.Error(err))
			}
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		page, meta := pagination.Page(episodes, params)
		resp := EpisodeListResponse{Episodes: make([]EpisodeResponse, len(page)), Meta: meta}
		for i, e := range page {
			resp.Episodes[i] = toEpisodeResponse(e)
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: resp})
	}
}

// QueueEpisode marks an episode for download and enqueues its ingest job
func (s Server) QueueEpisode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		episodeID, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid episode id", http.StatusBadRequest)
			return
		}

		jobID, err := s.manager.QueueEpisode(r.Context(), episodeID)
		if err != nil {
			log.Warnw("failed to queue episode", zap.Int64("episode_id", episodeID), zap.Error(err))
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusAccepted, GenericResponse{Response: map[string]int64{"jobID": jobID}})
	}
}
