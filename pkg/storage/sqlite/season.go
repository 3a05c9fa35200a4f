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

// CreateSeason stores a season. A zero ID lets the database assign one.
func (s *SQLite) CreateSeason(ctx context.Context, season model.Season) (int64, error) {
	insertColumns := sqlite.ColumnList{table.Season.AnimeID, table.Season.SeasonNumber, table.Season.EpisodeCount}
	if season.ID != 0 {
		insertColumns = append(insertColumns, table.Season.ID)
	}

	stmt := table.Season.
		INSERT(insertColumns).
		MODEL(season)

	result, err := s.handleInsert(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to create season: %w", err)
	}

	return result.LastInsertId()
}

// GetSeason gets a season matching where
func (s *SQLite) GetSeason(ctx context.Context, where sqlite.BoolExpression) (*model.Season, error) {
	stmt := table.Season.
		SELECT(table.Season.AllColumns).
		FROM(table.Season).
		WHERE(where).
		LIMIT(1)

	var season model.Season
	err := stmt.QueryContext(ctx, s.db, &season)
	if err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get season: %w", err)
	}

	return &season, nil
}

// ListSeasons lists seasons ordered by number with unnumbered seasons last
func (s *SQLite) ListSeasons(ctx context.Context, where ...sqlite.BoolExpression) ([]*model.Season, error) {
	stmt := table.Season.
		SELECT(table.Season.AllColumns).
		FROM(table.Season).
		ORDER_BY(
			table.Season.SeasonNumber.IS_NULL().ASC(),
			table.Season.SeasonNumber.ASC(),
			table.Season.ID.ASC(),
		)

	if w := and(where); w != nil {
		stmt = stmt.WHERE(w)
	}

	seasons := make([]*model.Season, 0)
	err := stmt.QueryContext(ctx, s.db, &seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}

	return seasons, nil
}

// UpdateSeasonNumber sets or clears a season's number
func (s *SQLite) UpdateSeasonNumber(ctx context.Context, id int64, number *int32) error {
	value := sqlite.IntExp(sqlite.NULL)
	if number != nil {
		value = sqlite.Int32(*number)
	}

	stmt := table.Season.
		UPDATE().
		SET(
			table.Season.SeasonNumber.SET(value),
			table.Season.UpdatedAt.SET(now()),
		).
		WHERE(table.Season.ID.EQ(sqlite.Int64(id)))

	return s.expectOne(ctx, stmt, "season number")
}

func (s *SQLite) UpdateSeasonEpisodeCount(ctx context.Context, id int64, count int32) error {
	stmt := table.Season.
		UPDATE().
		SET(
			table.Season.EpisodeCount.SET(sqlite.Int32(count)),
			table.Season.UpdatedAt.SET(now()),
		).
		WHERE(table.Season.ID.EQ(sqlite.Int64(id)))

	return s.expectOne(ctx, stmt, "season episode count")
}

// DeleteSeason removes a season. Episodes pointing at it keep their rows with a null season_id.
func (s *SQLite) DeleteSeason(ctx context.Context, id int64) error {
	stmt := table.Season.
		DELETE().
		WHERE(table.Season.ID.EQ(sqlite.Int64(id)))

	_, err := s.handleDelete(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to delete season: %w", err)
	}

	return nil
}

// expectOne runs an update keyed by primary key and reports ErrNotFound when no row matched
func (s *SQLite) expectOne(ctx context.Context, stmt sqlite.UpdateStatement, what string) error {
	result, err := s.handleUpdate(ctx, stmt)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	return nil
}
