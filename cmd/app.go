package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kasuboski/animez/config"
	"github.com/kasuboski/animez/pkg/fetch"
	mhttp "github.com/kasuboski/animez/pkg/http"
	mio "github.com/kasuboski/animez/pkg/io"
	"github.com/kasuboski/animez/pkg/manager"
	"github.com/kasuboski/animez/pkg/objectstore"
	"github.com/kasuboski/animez/pkg/storage/sqlite"
	"github.com/spf13/viper"
)

// app is everything a command needs to drive the manager
type app struct {
	config  config.Config
	store   *sqlite.SQLite
	manager *manager.Manager
}

func (a app) Close() error {
	return a.store.Close()
}

// newApp reads configuration, migrates the catalog and wires the manager
func newApp(ctx context.Context) (app, error) {
	cfg, err := config.New(viper.GetViper())
	if err != nil {
		return app{}, fmt.Errorf("failed to read configurations: %w", err)
	}

	store, err := sqlite.New(ctx, cfg.Storage.FilePath)
	if err != nil {
		return app{}, fmt.Errorf("failed to create storage connection: %w", err)
	}

	if err := store.RunMigrations(ctx); err != nil {
		store.Close()
		return app{}, fmt.Errorf("failed to migrate database: %w", err)
	}

	fetcher, err := fetch.New(cfg.Fetch.Binary,
		fetch.WithRetries(cfg.Fetch.Retries),
		fetch.WithTimeout(cfg.Fetch.Timeout),
	)
	if err != nil {
		store.Close()
		return app{}, err
	}

	fs := &mio.OSFileSystem{}
	opts := []mhttp.ClientOption{
		mhttp.WithMaxRetries(cfg.ObjectStore.MaxRetries),
		mhttp.WithHTTPClient(&http.Client{Timeout: cfg.ObjectStore.Timeout}),
	}
	if cfg.ObjectStore.BaseBackoff > 0 {
		opts = append(opts, mhttp.WithBaseBackoff(cfg.ObjectStore.BaseBackoff))
	}
	httpClient := mhttp.NewRateLimitedHTTPClient(opts...)

	var uploader objectstore.Uploader
	if cfg.ObjectStore.Endpoint != "" {
		uploader, err = objectstore.New(objectstore.Config{
			Endpoint:  cfg.ObjectStore.Endpoint,
			Zone:      cfg.ObjectStore.Zone,
			AccessKey: cfg.ObjectStore.AccessKey,
		}, httpClient, fs)
		if err != nil {
			store.Close()
			return app{}, err
		}
	}

	return app{
		config:  cfg,
		store:   store,
		manager: manager.New(store, cfg, fetcher, uploader, fs),
	}, nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return id, nil
}
