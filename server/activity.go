package server

import (
	"fmt"
	"net/http"

	"github.com/kasuboski/animez/pkg/logger"
)

const defaultFailureHours = 24

// GetActiveActivity lists transfers, jobs and runs in progress
func (s Server) GetActiveActivity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		activity, err := s.manager.GetActiveActivity(r.Context())
		if err != nil {
			log.Errorw("failed to get active activity", "error", err)
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: activity})
	}
}

// GetRecentFailures lists episodes and jobs that failed within ?hours= (default 24)
func (s Server) GetRecentFailures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromCtx(r.Context())

		hours, err := queryInt(r.URL.Query().Get("hours"), defaultFailureHours, 1)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid hours: %s", err), http.StatusBadRequest)
			return
		}

		failures, err := s.manager.GetRecentFailures(r.Context(), hours)
		if err != nil {
			log.Errorw("failed to get recent failures", "error", err, "hours", hours)
			writeErrorResponse(w, errorStatus(err), err)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: failures})
	}
}
