package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kasuboski/animez/pkg/manager"
)

// ListRuns lists the ingest runs of this process, newest first
func (s Server) ListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs := s.manager.ListRuns()
		statuses := make([]manager.RunStatus, len(runs))
		for i, run := range runs {
			statuses[i] = run.Status()
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: statuses})
	}
}

// GetRun returns a run's progress, and its result once finished
func (s Server) GetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := s.manager.GetRun(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}

		writeResponse(w, http.StatusOK, GenericResponse{Response: run.Status()})
	}
}
