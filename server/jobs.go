package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/kasuboski/animez/pkg/storage"
	"go.uber.org/zap"
)

// ListJobs lists jobs, optionally filtered with ?type=
func (s Server) ListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		var jobType *storage.JobType
		if t := r.URL.Query().Get("type"); t != "" {
			jt := storage.JobType(t)
			if !jt.Valid() {
				http.Error(w, fmt.Sprintf("invalid job type %q", t), http.StatusBadRequest)
				return
			}
			jobType = &jt
		}

		jobs, err := s.scheduler.ListJobs(r.Context(), jobType)
		if err != nil {
			log.Errorw("failed to list jobs", zap.Error(err))
			writeErrorResponse(w, http.StatusInternalServerError, err)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: manager.ToJobListResponse(jobs)})
	}
}

// TriggerJob enqueues a job by hand
func (s Server) TriggerJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		var request manager.TriggerJobRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		jobType := storage.JobType(request.Type)
		if !jobType.Valid() {
			http.Error(w, fmt.Sprintf("invalid job type %q", request.Type), http.StatusBadRequest)
			return
		}

		id, err := s.scheduler.CreateJob(r.Context(), jobType, request.AnimeID, request.EpisodeID)
		if err != nil {
			log.Warnw("failed to trigger job", zap.String("type", request.Type), zap.Error(err))
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusCreated, GenericResponse{Response: map[string]int64{"id": id}})
	}
}

// CancelJob cancels a pending or running job
func (s Server) CancelJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		id, err := pathID(r)
		if err != nil {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}

		if err := s.scheduler.CancelJob(r.Context(), id); err != nil {
			log.Warnw("failed to cancel job", zap.Int64("job_id", id), zap.Error(err))
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: "cancelled"})
	}
}
