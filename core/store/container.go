package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"datakit/core/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container owns the database connection, the schema and the contexts opened on it.
type Container struct {
	cfg    database.Config
	models []any
	logger *zap.Logger

	mu       sync.Mutex
	db       *gorm.DB
	main     *Context
	contexts map[*Context]struct{}
	seq      int
}

// NewContainer describes a store holding the given models. Call Load before use.
func NewContainer(cfg database.Config, logger *zap.Logger, models ...any) *Container {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{
		cfg:      cfg,
		models:   models,
		logger:   logger,
		contexts: make(map[*Context]struct{}),
	}
}

// Load connects and migrates the schema. A SQLite file that cannot be opened or
// migrated is removed and recreated once when ResetOnFailure is set.
func (c *Container) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	db, err := c.open(ctx)
	if err != nil && c.resettable() {
		c.logger.Warn("Failed to load store, resetting database file",
			zap.String("path", c.cfg.Name),
			zap.Error(err))
		if rmErr := c.removeFiles(); rmErr != nil {
			return fmt.Errorf("failed to reset store: %w", errors.Join(err, rmErr))
		}
		db, err = c.open(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	c.db = db
	c.main = c.newContextLocked("main")

	c.logger.Info("Store loaded",
		zap.String("driver", c.cfg.Driver),
		zap.String("name", c.cfg.Name),
		zap.Bool("read_only", c.cfg.ReadOnly))
	return nil
}

func (c *Container) open(ctx context.Context) (*gorm.DB, error) {
	db, err := database.Connect(c.cfg)
	if err != nil {
		return nil, err
	}

	if err := c.checkHeader(ctx, db); err != nil {
		closeDB(db)
		return nil, err
	}

	if c.cfg.AutoMigrate && !c.cfg.ReadOnly && len(c.models) > 0 {
		if err := db.WithContext(ctx).AutoMigrate(c.models...); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return db, nil
}

// checkHeader reads the SQLite header so a corrupt file fails at load time.
func (c *Container) checkHeader(ctx context.Context, db *gorm.DB) error {
	if c.cfg.Driver != database.DriverSQLite {
		return nil
	}
	var version int
	if err := db.WithContext(ctx).Raw("PRAGMA schema_version").Scan(&version).Error; err != nil {
		return fmt.Errorf("failed to read database file: %w", err)
	}
	return nil
}

func (c *Container) resettable() bool {
	return c.cfg.ResetOnFailure &&
		c.cfg.Driver == database.DriverSQLite &&
		!c.cfg.ReadOnly &&
		!c.cfg.IsMemory()
}

func (c *Container) removeFiles() error {
	var errs []error
	for _, path := range []string{c.cfg.Name, c.cfg.Name + "-wal", c.cfg.Name + "-shm"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DB returns the connection, or nil before Load.
func (c *Container) DB() *gorm.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

// ReadOnly reports whether commits are rejected.
func (c *Container) ReadOnly() bool {
	return c.cfg.ReadOnly
}

// MainContext returns the long-lived context used by request handlers.
func (c *Container) MainContext() (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.main == nil {
		return nil, ErrNotLoaded
	}
	return c.main, nil
}

// NewBackgroundContext opens a context with its own queue. Release it with CloseContext.
func (c *Container) NewBackgroundContext() (*Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, ErrNotLoaded
	}
	c.seq++
	return c.newContextLocked(fmt.Sprintf("background-%d", c.seq)), nil
}

// CloseContext stops a background context and discards its uncommitted changes.
func (c *Container) CloseContext(bg *Context) {
	c.mu.Lock()
	delete(c.contexts, bg)
	c.mu.Unlock()
	bg.Close()
}

// PerformBackgroundTask runs fn on a fresh background context and waits for it.
// Changes fn leaves uncommitted are discarded.
func (c *Container) PerformBackgroundTask(ctx context.Context, fn func(*Context) error) error {
	bg, err := c.NewBackgroundContext()
	if err != nil {
		return err
	}
	defer c.CloseContext(bg)
	return bg.PerformAndWait(ctx, fn)
}

// SaveAll commits every open context that has staged changes.
func (c *Container) SaveAll(ctx context.Context) error {
	c.mu.Lock()
	open := make([]*Context, 0, len(c.contexts))
	for cx := range c.contexts {
		open = append(open, cx)
	}
	c.mu.Unlock()

	var errs []error
	for _, cx := range open {
		if !cx.HasChanges() {
			continue
		}
		if err := cx.Commit(ctx); err != nil {
			errs = append(errs, fmt.Errorf("context %s: %w", cx.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops every context and closes the connection.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for cx := range c.contexts {
		cx.Close()
	}
	c.contexts = make(map[*Context]struct{})
	c.main = nil

	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	c.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *Container) newContextLocked(name string) *Context {
	var opts []ContextOption
	if c.cfg.ReadOnly {
		opts = append(opts, WithReadOnly())
	}
	cx := NewContext(name, c.db, c.logger, opts...)
	c.contexts[cx] = struct{}{}
	return cx
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
