package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kasuboski/animez/config"
	"github.com/kasuboski/animez/pkg/address"
	"github.com/kasuboski/animez/pkg/cache"
	"github.com/kasuboski/animez/pkg/fetch"
	mio "github.com/kasuboski/animez/pkg/io"
	"github.com/kasuboski/animez/pkg/logger"
	"github.com/kasuboski/animez/pkg/objectstore"
	"github.com/kasuboski/animez/pkg/source"
	"github.com/kasuboski/animez/pkg/storage"
	"github.com/kasuboski/animez/pkg/storage/sqlite/schema/gen/model"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConcurrency = 2
	DefaultMaxAttempts = 3
	DefaultSeasonSize  = 12

	DefaultRunRetention = 24 * time.Hour
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Manager owns ingestion runs and season reconciliation for the catalog
type Manager struct {
	storage   storage.Storage
	config    config.Config
	fetcher   fetch.Fetcher
	uploader  objectstore.Uploader
	fs        mio.FileIO
	addresser address.Addresser
	resolver  source.Resolver

	// global bounds transfers across every run in the process
	global *semaphore.Weighted
	runs   *cache.Cache[string, *Run]
	// inFlight holds episode ids currently being transferred
	inFlight    *cache.Cache[int32, struct{}]
	reconciling *cache.Cache[int32, struct{}]
}

func New(store storage.Storage, cfg config.Config, fetcher fetch.Fetcher, uploader objectstore.Uploader, fs mio.FileIO) *Manager {
	cfg = withDefaults(cfg)

	return &Manager{
		storage:     store,
		config:      cfg,
		fetcher:     fetcher,
		uploader:    uploader,
		fs:          fs,
		addresser:   address.New(cfg.CDN.Host),
		resolver:    source.NewResolver(cfg.Source.BaseURL, cfg.Source.Template),
		global:      semaphore.NewWeighted(int64(cfg.Ingest.GlobalConcurrency)),
		runs:        cache.New[string, *Run](),
		inFlight:    cache.New[int32, struct{}](),
		reconciling: cache.New[int32, struct{}](),
	}
}

func withDefaults(cfg config.Config) config.Config {
	if cfg.Ingest.Concurrency <= 0 {
		cfg.Ingest.Concurrency = DefaultConcurrency
	}
	if cfg.Ingest.GlobalConcurrency <= 0 {
		cfg.Ingest.GlobalConcurrency = DefaultConcurrency
	}
	if cfg.Ingest.MaxAttempts <= 0 {
		cfg.Ingest.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Ingest.RunRetention <= 0 {
		cfg.Ingest.RunRetention = DefaultRunRetention
	}
	if cfg.Reconcile.SeasonSize <= 0 {
		cfg.Reconcile.SeasonSize = DefaultSeasonSize
	}
	if cfg.Fetch.TempDir == "" {
		cfg.Fetch.TempDir = os.TempDir()
	}
	return cfg
}

// Addresser exposes how canonical urls are built for this manager
func (m *Manager) Addresser() address.Addresser {
	return m.addresser
}

func (m *Manager) validateConfig() error {
	if err := m.config.ValidateIngest(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ensureSlug returns the anime's slug, deriving and storing one the first time
func (m *Manager) ensureSlug(ctx context.Context, anime *model.Anime) (string, error) {
	if anime.Slug != nil && *anime.Slug != "" {
		return *anime.Slug, nil
	}

	log := logger.FromCtx(ctx, zap.Int32("anime_id", anime.ID))

	slug := Slugify(anime.Title)
	existing, err := m.storage.GetAnimeBySlug(ctx, slug)
	switch {
	case err == nil && existing.ID != anime.ID:
		slug = fmt.Sprintf("%s-%d", slug, anime.ID)
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return "", err
	}

	written, err := m.storage.SetAnimeSlug(ctx, int64(anime.ID), slug)
	if err != nil {
		return "", fmt.Errorf("failed to store slug: %w", err)
	}

	if written {
		log.Infow("assigned slug", zap.String("slug", slug))
		anime.Slug = &slug
		return slug, nil
	}

	// another writer got there first
	current, err := m.storage.GetAnime(ctx, int64(anime.ID))
	if err != nil {
		return "", err
	}
	if current.Slug == nil || *current.Slug == "" {
		return "", fmt.Errorf("anime %d has no slug after assignment", anime.ID)
	}

	anime.Slug = current.Slug
	return *current.Slug, nil
}

// EnsureSlug loads an anime and makes sure it has a slug
func (m *Manager) EnsureSlug(ctx context.Context, animeID int64) (string, error) {
	anime, err := m.storage.GetAnime(ctx, animeID)
	if err != nil {
		return "", err
	}
	return m.ensureSlug(ctx, anime)
}
