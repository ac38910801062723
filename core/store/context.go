package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"datakit/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type changeKind int

const (
	changeNone changeKind = iota
	changeInsert
	changeUpdate
	changeDelete
)

func (k changeKind) String() string {
	switch k {
	case changeInsert:
		return "insert"
	case changeUpdate:
		return "update"
	case changeDelete:
		return "delete"
	default:
		return "none"
	}
}

type change struct {
	kind  changeKind
	value any
}

// Context is a unit of work over the database. Inserts, updates and deletes are
// staged in memory and written together by Commit in a single transaction.
//
// A Context is confined to its queue: use Perform or PerformAndWait to run work that
// must not interleave with other writers of the same handle.
type Context struct {
	name     string
	db       *gorm.DB
	queue    *Queue
	logger   *zap.Logger
	readOnly bool

	mu      sync.Mutex
	changes []change
	index   map[any]int
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithReadOnly makes Commit reject staged changes with ErrReadOnly.
func WithReadOnly() ContextOption {
	return func(c *Context) { c.readOnly = true }
}

// NewContext creates a Context over db with its own task queue.
func NewContext(name string, db *gorm.DB, logger *zap.Logger, opts ...ContextOption) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Context{
		name:   name,
		db:     db,
		queue:  NewQueue(64),
		logger: logger.With(zap.String("context", name)),
		index:  make(map[any]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the context name used in logs.
func (c *Context) Name() string {
	return c.name
}

// DB returns the underlying connection bound to ctx.
func (c *Context) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

// Perform runs fn on the context queue without waiting.
func (c *Context) Perform(fn func(*Context)) error {
	return c.queue.Perform(func() { fn(c) })
}

// PerformAndWait runs fn on the context queue and returns its error.
func (c *Context) PerformAndWait(ctx context.Context, fn func(*Context) error) error {
	return c.queue.PerformAndWait(ctx, func() error { return fn(c) })
}

// Insert stages a new record. value must be a pointer to a model.
func (c *Context) Insert(value any) error {
	return c.stage(changeInsert, value)
}

// Update stages the current field values of a persisted record.
func (c *Context) Update(value any) error {
	return c.stage(changeUpdate, value)
}

// Delete stages the removal of a record. Deleting a record staged for insertion
// cancels the insertion.
func (c *Context) Delete(value any) error {
	return c.stage(changeDelete, value)
}

func (c *Context) stage(kind changeKind, value any) error {
	if value == nil || reflect.ValueOf(value).Kind() != reflect.Pointer {
		return fmt.Errorf("cannot %s %T: not a pointer", kind, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[value]
	if !ok {
		c.index[value] = len(c.changes)
		c.changes = append(c.changes, change{kind: kind, value: value})
		return nil
	}

	current := &c.changes[i]
	switch {
	case current.kind == kind:
	case kind == changeUpdate && current.kind == changeInsert:
		// The insert writes the latest field values.
	case kind == changeDelete && current.kind == changeInsert:
		current.kind = changeNone
		delete(c.index, value)
	case kind == changeDelete && current.kind == changeUpdate:
		current.kind = changeDelete
	default:
		return fmt.Errorf("cannot %s %T: already staged for %s", kind, value, current.kind)
	}
	return nil
}

// HasChanges reports whether anything is staged.
func (c *Context) HasChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pendingLocked()) > 0
}

// Pending returns the number of staged inserts, updates and deletes.
func (c *Context) Pending() (inserts, updates, deletes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pendingLocked() {
		switch ch.kind {
		case changeInsert:
			inserts++
		case changeUpdate:
			updates++
		case changeDelete:
			deletes++
		}
	}
	return inserts, updates, deletes
}

// Commit writes every staged change in one transaction.
// Nothing is written when no changes are staged. On failure the changes stay
// staged so the caller can retry or Rollback.
func (c *Context) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pendingLocked()
	if len(pending) == 0 {
		c.logger.Debug("Context has no changes to commit")
		return nil
	}
	if c.readOnly {
		return fmt.Errorf("%w: %w", reconcile.ErrCommitFailed, ErrReadOnly)
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range pending {
			var res *gorm.DB
			switch ch.kind {
			case changeInsert:
				res = tx.Create(ch.value)
			case changeUpdate:
				res = tx.Save(ch.value)
			case changeDelete:
				res = tx.Delete(ch.value)
			}
			if res.Error != nil {
				return fmt.Errorf("failed to %s %T: %w", ch.kind, ch.value, res.Error)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Error("Failed to commit context", zap.Int("changes", len(pending)), zap.Error(err))
		return fmt.Errorf("%w: %w", reconcile.ErrCommitFailed, err)
	}

	c.logger.Debug("Committed context", zap.Int("changes", len(pending)))
	c.resetLocked()
	return nil
}

// CommitAsync schedules Commit on the context queue. The channel receives its result.
func (c *Context) CommitAsync(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	if err := c.queue.Perform(func() { result <- c.Commit(ctx) }); err != nil {
		result <- err
	}
	return result
}

// Rollback discards every staged change.
func (c *Context) Rollback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Close discards staged changes and stops the context queue after queued work finishes.
func (c *Context) Close() {
	c.queue.Close()
	c.Rollback()
}

func (c *Context) pendingLocked() []change {
	pending := make([]change, 0, len(c.changes))
	for _, ch := range c.changes {
		if ch.kind != changeNone {
			pending = append(pending, ch)
		}
	}
	return pending
}

func (c *Context) resetLocked() {
	c.changes = nil
	c.index = make(map[any]int)
}
