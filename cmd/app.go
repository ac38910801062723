package cmd

import (
	"context"
	"fmt"

	"datakit/core/config"
	"datakit/core/logger"
	"datakit/core/storage"
	"datakit/core/store"
	"datakit/feature/integrity"
	"datakit/feature/stories"

	"go.uber.org/zap"
)

// app bundles the pieces every command needs.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	container *store.Container
	storage   storage.Client
	service   *stories.Service
}

// bootstrap loads configuration, opens the store and wires the story service.
// The caller must call close.
func bootstrap(ctx context.Context, override func(*config.Config)) (*app, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var client storage.Client
	if cfg.Storage.Enabled {
		if client, err = storage.NewClient(cfg.Storage); err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
	}

	container := store.NewContainer(cfg.Database, l, &stories.Story{})
	if err := container.Load(ctx); err != nil {
		return nil, err
	}
	main, err := container.MainContext()
	if err != nil {
		_ = container.Close()
		return nil, err
	}

	source, err := stories.NewSource(cfg.Source, client, cfg.Storage.Bucket, l)
	if err != nil {
		_ = container.Close()
		return nil, err
	}

	svc, err := stories.NewService(stories.Options{
		Context:        main,
		Source:         source,
		Storage:        client,
		Bucket:         cfg.Storage.Bucket,
		SnapshotObject: cfg.Source.SnapshotObject,
		Sync:           cfg.Sync,
		Logger:         l,
	})
	if err != nil {
		_ = container.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: l, container: container, storage: client, service: svc}, nil
}

// integrity builds the integrity service over the mirror's database and storage.
func (a *app) integrity() *integrity.Service {
	return integrity.NewService(a.storage, a.cfg.Storage.Bucket, a.cfg.Source.SnapshotObject,
		a.cfg.Storage.Region, a.container.DB(), a.logger, &stories.Story{})
}

func (a *app) close() {
	if err := a.container.Close(); err != nil {
		a.logger.Warn("Failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
