package sqlite

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/go-jet/jet/v2/qrm"
	"github.com/go-jet/jet/v2/sqlite"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
)

// CreateEpisode stores an episode. An empty status defaults to pending.
func (s *SQLite) CreateEpisode(ctx context.Context, episode model.Episode) (int64, error) {
	if episode.Status == "" {
		episode.Status = string(storage.EpisodeStatusPending)
	}
	if !slices.Contains(storage.EpisodeStatuses, storage.EpisodeStatus(episode.Status)) {
		return 0, fmt.Errorf("unknown episode status %q", episode.Status)
	}

	stmt := table.Episode.
		INSERT(
			table.Episode.AnimeID,
			table.Episode.SeasonID,
			table.Episode.SeasonNumber,
			table.Episode.EpisodeNumber,
			table.Episode.Title,
			table.Episode.CanonicalURL,
			table.Episode.Status,
			table.Episode.ErrorMessage,
		).
		MODEL(episode)

	result, err := s.handleInsert(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to create episode: %w", err)
	}

	return result.LastInsertId()
}

// GetEpisode gets an episode by id
func (s *SQLite) GetEpisode(ctx context.Context, id int64) (*storage.Episode, error) {
	stmt := table.Episode.
		SELECT(table.Episode.AllColumns).
		FROM(table.Episode).
		WHERE(table.Episode.ID.EQ(sqlite.Int64(id)))

	var episode storage.Episode
	err := stmt.QueryContext(ctx, s.db, &episode)
	if err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}

	return &episode, nil
}

// ListEpisodes lists episodes ordered by season then episode number. Episodes without a season come last.
func (s *SQLite) ListEpisodes(ctx context.Context, where ...sqlite.BoolExpression) ([]*storage.Episode, error) {
	stmt := table.Episode.
		SELECT(table.Episode.AllColumns).
		FROM(table.Episode).
		ORDER_BY(
			table.Episode.SeasonNumber.IS_NULL().ASC(),
			table.Episode.SeasonNumber.ASC(),
			table.Episode.EpisodeNumber.ASC(),
			table.Episode.ID.ASC(),
		)

	if w := and(where); w != nil {
		stmt = stmt.WHERE(w)
	}

	episodes := make([]*storage.Episode, 0)
	err := stmt.QueryContext(ctx, s.db, &episodes)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}

	return episodes, nil
}

// UpdateEpisodeStatus only writes when the current status may move to status.
// The check and the write are one statement so concurrent writers can't skip a transition.
func (s *SQLite) UpdateEpisodeStatus(ctx context.Context, id int64, status storage.EpisodeStatus, errorMessage *string) error {
	message := sqlite.StringExp(sqlite.NULL)
	if errorMessage != nil {
		message = sqlite.String(*errorMessage)
	}

	stmt := table.Episode.
		UPDATE().
		SET(
			table.Episode.Status.SET(sqlite.String(string(status))),
			table.Episode.ErrorMessage.SET(message),
			table.Episode.UpdatedAt.SET(now()),
		).
		WHERE(
			table.Episode.ID.EQ(sqlite.Int64(id)).
				AND(table.Episode.Status.IN(fromStatuses(status)...)),
		)

	return s.transition(ctx, id, status, stmt)
}

// MarkEpisodeReady commits the canonical url and ready status together
func (s *SQLite) MarkEpisodeReady(ctx context.Context, id int64, canonicalURL string) error {
	stmt := table.Episode.
		UPDATE().
		SET(
			table.Episode.CanonicalURL.SET(sqlite.String(canonicalURL)),
			table.Episode.Status.SET(sqlite.String(string(storage.EpisodeStatusReady))),
			table.Episode.ErrorMessage.SET(sqlite.StringExp(sqlite.NULL)),
			table.Episode.UpdatedAt.SET(now()),
		).
		WHERE(
			table.Episode.ID.EQ(sqlite.Int64(id)).
				AND(table.Episode.Status.IN(fromStatuses(storage.EpisodeStatusReady)...)),
		)

	return s.transition(ctx, id, storage.EpisodeStatusReady, stmt)
}

// UpdateEpisodeSeason repoints an episode. Status and canonical url are left alone.
func (s *SQLite) UpdateEpisodeSeason(ctx context.Context, id int64, seasonID *int32, seasonNumber *int32) error {
	seasonIDValue := sqlite.IntExp(sqlite.NULL)
	if seasonID != nil {
		seasonIDValue = sqlite.Int32(*seasonID)
	}
	seasonNumberValue := sqlite.IntExp(sqlite.NULL)
	if seasonNumber != nil {
		seasonNumberValue = sqlite.Int32(*seasonNumber)
	}

	stmt := table.Episode.
		UPDATE().
		SET(
			table.Episode.SeasonID.SET(seasonIDValue),
			table.Episode.SeasonNumber.SET(seasonNumberValue),
			table.Episode.UpdatedAt.SET(now()),
		).
		WHERE(table.Episode.ID.EQ(sqlite.Int64(id)))

	return s.expectOne(ctx, stmt, "episode season")
}

func fromStatuses(target storage.EpisodeStatus) []sqlite.Expression {
	statuses := storage.StatusesInto(target)
	exprs := make([]sqlite.Expression, len(statuses))
	for i, status := range statuses {
		exprs[i] = sqlite.String(string(status))
	}
	return exprs
}

func (s *SQLite) transition(ctx context.Context, id int64, status storage.EpisodeStatus, stmt sqlite.UpdateStatement) error {
	if len(storage.StatusesInto(status)) == 0 {
		return fmt.Errorf("no status can move to %q", status)
	}

	result, err := s.handleUpdate(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to update episode status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	episode, err := s.GetEpisode(ctx, id)
	if err != nil {
		return err
	}

	if err := episode.Machine().ToState(status); err != nil {
		return fmt.Errorf("episode %d: %w", id, err)
	}

	return fmt.Errorf("episode %d changed while moving to %q", id, status)
}
