package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-jet/jet/v2/qrm"
	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
)

func selectJobs() sqlite.SelectStatement {
	return table.Job.
		SELECT(
			table.Job.AllColumns,
			table.JobTransition.ToState,
			table.JobTransition.Error,
			table.JobTransition.UpdatedAt,
		).
		FROM(
			table.Job.INNER_JOIN(
				table.JobTransition,
				table.Job.ID.EQ(table.JobTransition.JobID).
					AND(table.JobTransition.MostRecent.EQ(sqlite.Bool(true))),
			),
		)
}

func nullableEQ(column sqlite.ColumnInteger, value *int32) sqlite.BoolExpression {
	if value == nil {
		return column.IS_NULL()
	}
	return column.EQ(sqlite.Int32(*value))
}

// pendingJob finds a pending job with the same type and target
func (s *SQLite) pendingJob(ctx context.Context, job storage.Job) (*storage.Job, error) {
	jobs, err := s.ListJobs(ctx,
		table.Job.Type.EQ(sqlite.String(job.Type)),
		table.JobTransition.ToState.EQ(sqlite.String(string(storage.JobStatePending))),
		nullableEQ(table.Job.AnimeID, job.AnimeID),
		nullableEQ(table.Job.EpisodeID, job.EpisodeID),
	)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, storage.ErrNotFound
	}
	return jobs[0], nil
}

// CreateJob stores a job and creates an initial state
func (s *SQLite) CreateJob(ctx context.Context, job storage.Job, initialState storage.JobState) (int64, error) {
	if !storage.JobType(job.Type).Valid() {
		return 0, fmt.Errorf("unknown job type %q", job.Type)
	}

	job.State = storage.JobStateNew
	err := job.Machine().ToState(initialState)
	if err != nil {
		return 0, err
	}

	if initialState == storage.JobStatePending {
		_, err := s.pendingJob(ctx, job)
		if err == nil {
			return 0, storage.ErrJobAlreadyPending
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt := table.Job.
		INSERT(table.Job.Type, table.Job.AnimeID, table.Job.EpisodeID).
		MODEL(job.Job)

	result, err := stmt.ExecContext(ctx, tx)
	if err != nil {
		tx.Rollback()
		return 0, wrapConstraint(err)
	}

	inserted, err := result.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	transition := storage.JobTransition{
		JobID:      int32(inserted),
		ToState:    string(initialState),
		MostRecent: true,
		SortKey:    1,
	}

	transitionStmt := table.JobTransition.
		INSERT(table.JobTransition.JobID, table.JobTransition.ToState, table.JobTransition.MostRecent, table.JobTransition.SortKey).
		MODEL(transition)

	_, err = transitionStmt.ExecContext(ctx, tx)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	err = tx.Commit()
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetJob retrieves a job by ID with its current state
func (s *SQLite) GetJob(ctx context.Context, id int64) (*storage.Job, error) {
	stmt := selectJobs().
		WHERE(table.Job.ID.EQ(sqlite.Int64(id)))

	job := new(storage.Job)
	err := stmt.QueryContext(ctx, s.db, job)
	if err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs lists jobs with their current state, oldest first
func (s *SQLite) ListJobs(ctx context.Context, where ...sqlite.BoolExpression) ([]*storage.Job, error) {
	stmt := selectJobs().
		ORDER_BY(table.Job.ID.ASC())

	if w := and(where); w != nil {
		stmt = stmt.WHERE(w)
	}

	jobs := make([]*storage.Job, 0)
	err := stmt.QueryContext(ctx, s.db, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// UpdateJobState appends a transition, optionally recording an error message
func (s *SQLite) UpdateJobState(ctx context.Context, id int64, state storage.JobState, errorMsg *string) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	err = job.Machine().ToState(state)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	currentStmt := table.JobTransition.
		SELECT(table.JobTransition.AllColumns).
		FROM(table.JobTransition).
		WHERE(
			table.JobTransition.JobID.EQ(sqlite.Int64(id)).
				AND(table.JobTransition.MostRecent.EQ(sqlite.Bool(true))),
		)

	var current model.JobTransition
	err = currentStmt.QueryContext(ctx, tx, &current)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to get current job transition: %w", err)
	}

	previousStmt := table.JobTransition.
		UPDATE().
		SET(
			table.JobTransition.MostRecent.SET(sqlite.Bool(false)),
			table.JobTransition.UpdatedAt.SET(now()),
		).
		WHERE(table.JobTransition.ID.EQ(sqlite.Int32(current.ID)))

	_, err = previousStmt.ExecContext(ctx, tx)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update previous job transition: %w", err)
	}

	transition := storage.JobTransition{
		JobID:      int32(id),
		FromState:  &current.ToState,
		ToState:    string(state),
		MostRecent: true,
		SortKey:    current.SortKey + 1,
		Error:      errorMsg,
	}

	insertStmt := table.JobTransition.
		INSERT(
			table.JobTransition.JobID,
			table.JobTransition.FromState,
			table.JobTransition.ToState,
			table.JobTransition.MostRecent,
			table.JobTransition.SortKey,
			table.JobTransition.Error,
		).
		MODEL(transition)

	_, err = insertStmt.ExecContext(ctx, tx)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to insert new job transition: %w", err)
	}

	return tx.Commit()
}
