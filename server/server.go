package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/kasuboski/animez/pkg/machine"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
)

type GenericResponse struct {
	Error    *string `json:"error,omitempty"`
	Response any     `json:"response"`
}

// AnimeManager is the catalog and ingest surface the server drives
type AnimeManager interface {
	StartIngest(ctx context.Context, req manager.IngestRequest) (*manager.Run, error)
	GetRun(id string) (*manager.Run, bool)
	ListRuns() []*manager.Run
	ReconcileSeasons(ctx context.Context, animeID int64) (*manager.ReconcileResult, error)
	PlanSeasons(ctx context.Context, animeID int64) (manager.SeasonLayout, diff.Changelog, error)
	ListEpisodes(ctx context.Context, animeID int64) ([]*storage.Episode, error)
	QueueEpisode(ctx context.Context, episodeID int64) (int64, error)
	GetActiveActivity(ctx context.Context) (*manager.ActivityResponse, error)
	GetRecentFailures(ctx context.Context, hours int) (*manager.FailuresResponse, error)
}

// JobScheduler exposes the job queue
type JobScheduler interface {
	ListJobs(ctx context.Context, jobType *storage.JobType) ([]*storage.Job, error)
	CreateJob(ctx context.Context, jobType storage.JobType, animeID, episodeID *int32) (int64, error)
	CancelJob(ctx context.Context, jobID int64) error
}

// Server houses the dependencies of the ops http surface
type Server struct {
	baseLogger *zap.SugaredLogger
	manager    AnimeManager
	scheduler  JobScheduler
}

// New creates a new ops server
func New(logger *zap.SugaredLogger, manager AnimeManager, scheduler JobScheduler) Server {
	return Server{
		baseLogger: logger,
		manager:    manager,
		scheduler:  scheduler,
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, err error) error {
	msg := err.Error()
	return writeResponse(w, status, GenericResponse{
		Error: &msg,
	})
}

func writeResponse(w http.ResponseWriter, status int, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	w.Header().Set("content-type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}

	w.Write(b)
	return nil
}

// errorStatus maps domain errors to a response code
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrJobAlreadyPending),
		errors.Is(err, manager.ErrReconcileInProgress),
		errors.Is(err, machine.ErrInvalidTransition),
		errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Router builds the route table
func (s Server) Router() http.Handler {
	rtr := mux.NewRouter()
	rtr.Use(s.LogMiddleware())
	rtr.HandleFunc("/healthz", s.Healthz()).Methods(http.MethodGet)

	api := rtr.PathPrefix("/api").Subrouter()

	v1 := api.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/anime/{id:[0-9]+}/ingest", s.StartIngest()).Methods(http.MethodPost)
	v1.HandleFunc("/anime/{id:[0-9]+}/reconcile", s.ReconcileSeasons()).Methods(http.MethodPost)
	v1.HandleFunc("/anime/{id:[0-9]+}/episodes", s.ListEpisodes()).Methods(http.MethodGet)

	v1.HandleFunc("/runs", s.ListRuns()).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", s.GetRun()).Methods(http.MethodGet)

	v1.HandleFunc("/episodes/{id:[0-9]+}/queue", s.QueueEpisode()).Methods(http.MethodPost)

	v1.HandleFunc("/activity/active", s.GetActiveActivity()).Methods(http.MethodGet)
	v1.HandleFunc("/activity/failures", s.GetRecentFailures()).Methods(http.MethodGet)

	v1.HandleFunc("/jobs", s.ListJobs()).Methods(http.MethodGet)
	v1.HandleFunc("/jobs", s.TriggerJob()).Methods(http.MethodPost)
	v1.HandleFunc("/jobs/{id:[0-9]+}", s.CancelJob()).Methods(http.MethodDelete)

	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
	)(rtr)
}

// Serve starts the http server and blocks until ctx is done
func (s Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(s.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.baseLogger.Infow("serving...", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// Healthz is an endpoint that can be used for probes
func (s Server) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := GenericResponse{
			Response: "ok",
		}
		writeResponse(w, http.StatusOK, response)
	}
}
