package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-jet/jet/v2/sqlite"
	"github.com/hashicorp/go-multierror"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/table"
	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
)

var ErrReconcileInProgress = errors.New("season reconcile already running for anime")

// ReconcileResult reports what a reconcile changed. Counts only include writes that succeeded.
type ReconcileResult struct {
	AnimeID           int32    `json:"animeID"`
	SeasonsDeleted    int      `json:"seasonsDeleted"`
	SeasonsCreated    int      `json:"seasonsCreated"`
	SeasonsRenumbered int      `json:"seasonsRenumbered"`
	EpisodesMoved     int      `json:"episodesMoved"`
	CountsUpdated     int      `json:"countsUpdated"`
	Errors            []string `json:"errors"`
}

func (r ReconcileResult) Success() bool {
	return len(r.Errors) == 0
}

// Changed reports whether anything was written
func (r ReconcileResult) Changed() bool {
	return r.SeasonsDeleted+r.SeasonsCreated+r.SeasonsRenumbered+r.EpisodesMoved+r.CountsUpdated > 0
}

// ReconcileSeasons repairs the season structure of an anime.
// Episodes are only ever repointed, never deleted, and their status and url are left alone.
// Step failures are collected in the result rather than returned.
func (m *Manager) ReconcileSeasons(ctx context.Context, animeID int64) (*ReconcileResult, error) {
	id := int32(animeID)
	if !m.reconciling.SetIfAbsent(id, struct{}{}) {
		return nil, fmt.Errorf("%w: %d", ErrReconcileInProgress, animeID)
	}
	defer m.reconciling.Delete(id)

	log := logger.FromCtx(ctx, zap.Int64("anime_id", animeID))

	seasons, episodes, err := m.loadStructure(ctx, animeID)
	if err != nil {
		return nil, err
	}

	layout := PlanSeasonLayout(seasons, episodes, m.config.Reconcile.SeasonSize)
	result := m.applySeasonLayout(ctx, id, seasons, episodes, layout)

	if !result.Success() {
		log.Warnw("season reconcile finished with errors", zap.Strings("errors", result.Errors))
	} else if result.Changed() {
		log.Infow("season reconcile applied",
			zap.Int("deleted", result.SeasonsDeleted),
			zap.Int("created", result.SeasonsCreated),
			zap.Int("renumbered", result.SeasonsRenumbered),
			zap.Int("moved", result.EpisodesMoved))
	} else {
		log.Debug("season layout already correct")
	}

	return result, nil
}

// PlanSeasons returns the layout a reconcile would apply and the season number each episode would move to.
// Nothing is written.
func (m *Manager) PlanSeasons(ctx context.Context, animeID int64) (SeasonLayout, diff.Changelog, error) {
	seasons, episodes, err := m.loadStructure(ctx, animeID)
	if err != nil {
		return SeasonLayout{}, nil, err
	}

	layout := PlanSeasonLayout(seasons, episodes, m.config.Reconcile.SeasonSize)
	finals := layout.FinalNumbers()

	before := make(map[string]int32, len(episodes))
	after := make(map[string]int32, len(episodes))
	for _, e := range episodes {
		key := strconv.Itoa(int(e.ID))
		before[key] = 0
		if e.SeasonNumber != nil {
			before[key] = *e.SeasonNumber
		}
		after[key] = finals[e.ID]
	}

	changelog, err := diff.Diff(before, after)
	if err != nil {
		return layout, nil, fmt.Errorf("failed to diff season layout: %w", err)
	}

	return layout, changelog, nil
}

// ReconcileAll reconciles every anime in the catalog
func (m *Manager) ReconcileAll(ctx context.Context) error {
	animes, err := m.storage.ListAnime(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, anime := range animes {
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := m.ReconcileSeasons(ctx, int64(anime.ID))
		if err != nil {
			errs = multierror.Append(errs, multierror.Prefix(err, fmt.Sprintf("[anime %d]", anime.ID)))
			continue
		}
		for _, msg := range result.Errors {
			errs = multierror.Append(errs, fmt.Errorf("[anime %d] %s", anime.ID, msg))
		}
	}

	return errs.ErrorOrNil()
}

func (m *Manager) loadStructure(ctx context.Context, animeID int64) ([]*model.Season, []*storage.Episode, error) {
	if _, err := m.storage.GetAnime(ctx, animeID); err != nil {
		return nil, nil, err
	}

	seasons, err := m.storage.ListSeasons(ctx, table.Season.AnimeID.EQ(sqlite.Int64(animeID)))
	if err != nil {
		return nil, nil, err
	}

	episodes, err := m.storage.ListEpisodes(ctx, table.Episode.AnimeID.EQ(sqlite.Int64(animeID)))
	if err != nil {
		return nil, nil, err
	}

	return seasons, episodes, nil
}

type seasonMove struct {
	episode  *storage.Episode
	seasonID int32
	number   int32
}

// applySeasonLayout writes a layout in an order that never trips the unique season number index:
// empty seasons go first, kept seasons are renumbered ascending, then missing seasons are created.
func (m *Manager) applySeasonLayout(ctx context.Context, animeID int32, seasons []*model.Season, episodes []*storage.Episode, layout SeasonLayout) *ReconcileResult {
	result := &ReconcileResult{AnimeID: animeID, Errors: make([]string, 0)}
	var errs *multierror.Error

	seasonByID := make(map[int32]*model.Season, len(seasons))
	for _, s := range seasons {
		seasonByID[s.ID] = s
	}

	deleted := make(map[int32]bool)
	for _, id := range layout.Delete {
		if err := m.storage.DeleteSeason(ctx, int64(id)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("delete season %d: %w", id, err))
			continue
		}
		deleted[id] = true
		result.SeasonsDeleted++
	}

	rows := make([]*int32, len(layout.Seasons))
	for i, plan := range layout.Seasons {
		if plan.SeasonID == nil {
			continue
		}
		rows[i] = plan.SeasonID

		current := seasonByID[*plan.SeasonID].SeasonNumber
		if current != nil && *current == plan.FinalNumber {
			continue
		}

		if err := m.storage.UpdateSeasonNumber(ctx, int64(*plan.SeasonID), ptr(plan.FinalNumber)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("renumber season %d to %d: %w", *plan.SeasonID, plan.FinalNumber, err))
			continue
		}
		result.SeasonsRenumbered++
	}

	for i, plan := range layout.Seasons {
		if plan.SeasonID != nil {
			continue
		}

		id, err := m.storage.CreateSeason(ctx, model.Season{
			AnimeID:      animeID,
			SeasonNumber: ptr(plan.FinalNumber),
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("create season %d: %w", plan.FinalNumber, err))
			continue
		}
		rows[i] = ptr(int32(id))
		result.SeasonsCreated++
	}

	episodeByID := make(map[int32]*storage.Episode, len(episodes))
	for _, e := range episodes {
		episodeByID[e.ID] = e
	}

	var moves []seasonMove
	for i, plan := range layout.Seasons {
		if rows[i] == nil {
			errs = multierror.Append(errs, fmt.Errorf("season %d has no row, %d episodes left in place", plan.FinalNumber, len(plan.Episodes)))
			continue
		}

		for _, ref := range plan.Episodes {
			e := episodeByID[ref.ID]
			// a deleted season's id may be handed to a season created above
			if e.SeasonID != nil && !deleted[*e.SeasonID] && *e.SeasonID == *rows[i] && e.SeasonNumber != nil && *e.SeasonNumber == plan.FinalNumber {
				continue
			}
			moves = append(moves, seasonMove{episode: e, seasonID: *rows[i], number: plan.FinalNumber})
		}
	}

	// detach episodes changing season first so two episodes swapping seasons don't collide
	detachFailed := make(map[int32]bool)
	for _, mv := range moves {
		current := mv.episode.SeasonID
		if current == nil || *current == mv.seasonID || deleted[*current] {
			continue
		}
		if err := m.storage.UpdateEpisodeSeason(ctx, int64(mv.episode.ID), nil, mv.episode.SeasonNumber); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("detach episode %d: %w", mv.episode.ID, err))
			detachFailed[mv.episode.ID] = true
		}
	}

	for _, mv := range moves {
		if detachFailed[mv.episode.ID] {
			continue
		}
		if err := m.storage.UpdateEpisodeSeason(ctx, int64(mv.episode.ID), ptr(mv.seasonID), ptr(mv.number)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("move episode %d (number %d) to season %d: %w", mv.episode.ID, mv.episode.EpisodeNumber, mv.number, err))
			continue
		}
		result.EpisodesMoved++
	}

	for id := range deleted {
		delete(seasonByID, id)
	}
	if err := m.recountEpisodes(ctx, animeID, rows, seasonByID, result); err != nil {
		errs = multierror.Append(errs, err)
	}

	if errs != nil {
		for _, err := range errs.Errors {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	return result
}

// recountEpisodes stores each season's episode count from what is actually in storage
func (m *Manager) recountEpisodes(ctx context.Context, animeID int32, rows []*int32, seasonByID map[int32]*model.Season, result *ReconcileResult) error {
	episodes, err := m.storage.ListEpisodes(ctx, table.Episode.AnimeID.EQ(sqlite.Int32(animeID)))
	if err != nil {
		return fmt.Errorf("recount episodes: %w", err)
	}

	counts := make(map[int32]int32)
	for _, e := range episodes {
		if e.SeasonID != nil {
			counts[*e.SeasonID]++
		}
	}

	var errs *multierror.Error
	for _, id := range rows {
		if id == nil {
			continue
		}

		stored := int32(0)
		if s, ok := seasonByID[*id]; ok {
			stored = s.EpisodeCount
		}
		if stored == counts[*id] {
			continue
		}

		if err := m.storage.UpdateSeasonEpisodeCount(ctx, int64(*id), counts[*id]); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("update episode count for season %d: %w", *id, err))
			continue
		}
		result.CountsUpdated++
	}

	return errs.ErrorOrNil()
}
