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

// CreateAnime stores a catalog entry
func (s *SQLite) CreateAnime(ctx context.Context, anime model.Anime) (int64, error) {
	stmt := table.Anime.
		INSERT(table.Anime.Title, table.Anime.Slug, table.Anime.SourceTemplate).
		MODEL(anime)

	result, err := s.handleInsert(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to create anime: %w", err)
	}

	return result.LastInsertId()
}

func (s *SQLite) GetAnime(ctx context.Context, id int64) (*model.Anime, error) {
	return s.getAnime(ctx, table.Anime.ID.EQ(sqlite.Int64(id)))
}

func (s *SQLite) GetAnimeBySlug(ctx context.Context, slug string) (*model.Anime, error) {
	return s.getAnime(ctx, table.Anime.Slug.EQ(sqlite.String(slug)))
}

func (s *SQLite) getAnime(ctx context.Context, where sqlite.BoolExpression) (*model.Anime, error) {
	stmt := table.Anime.
		SELECT(table.Anime.AllColumns).
		FROM(table.Anime).
		WHERE(where)

	var anime model.Anime
	err := stmt.QueryContext(ctx, s.db, &anime)
	if err != nil {
		if errors.Is(err, qrm.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}

	return &anime, nil
}

// ListAnime lists every catalog entry ordered by id
func (s *SQLite) ListAnime(ctx context.Context) ([]*model.Anime, error) {
	stmt := table.Anime.
		SELECT(table.Anime.AllColumns).
		FROM(table.Anime).
		ORDER_BY(table.Anime.ID.ASC())

	anime := make([]*model.Anime, 0)
	err := stmt.QueryContext(ctx, s.db, &anime)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime: %w", err)
	}

	return anime, nil
}

// SetAnimeSlug writes slug only while the stored slug is null so an assigned slug never changes
func (s *SQLite) SetAnimeSlug(ctx context.Context, id int64, slug string) (bool, error) {
	stmt := table.Anime.
		UPDATE(table.Anime.Slug).
		SET(sqlite.String(slug)).
		WHERE(
			table.Anime.ID.EQ(sqlite.Int64(id)).
				AND(table.Anime.Slug.IS_NULL()),
		)

	result, err := s.handleUpdate(ctx, stmt)
	if err != nil {
		return false, fmt.Errorf("failed to set anime slug: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}
