package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"datakit/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	insertBatchSize = 100
	deleteBatchSize = 500
)

// Order sorts query results by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query narrows a fetch. Where and Args follow gorm's Where conventions.
type Query struct {
	Where  string
	Args   []any
	Order  []Order
	Limit  int
	Offset int
}

// Repo is a typed view over one model inside a Context.
// It satisfies reconcile.Store and reconcile.BatchApplier.
type Repo[T any, K cmp.Ordered] struct {
	ctx    *Context
	schema *schema.Schema
	key    *schema.Field
}

// RepoOption configures a Repo.
type RepoOption func(*repoOptions)

type repoOptions struct {
	keyColumn string
}

// WithKeyColumn selects the identifier column instead of the model's primary key.
func WithKeyColumn(column string) RepoOption {
	return func(o *repoOptions) { o.keyColumn = column }
}

// NewRepo resolves the schema of T and its identifier field.
func NewRepo[T any, K cmp.Ordered](c *Context, opts ...RepoOption) (*Repo[T, K], error) {
	var o repoOptions
	for _, opt := range opts {
		opt(&o)
	}

	sch, err := schema.Parse(new(T), &sync.Map{}, c.db.NamingStrategy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model %T: %w", new(T), err)
	}

	var key *schema.Field
	if o.keyColumn != "" {
		key = sch.LookUpField(o.keyColumn)
		if key == nil {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, sch.Table, o.keyColumn)
		}
	} else {
		key = sch.PrioritizedPrimaryField
		if key == nil {
			return nil, fmt.Errorf("model %s has no primary key", sch.Name)
		}
	}

	if want := reflect.TypeFor[K](); key.FieldType != want {
		return nil, fmt.Errorf("key %s.%s is %s, not %s", sch.Table, key.DBName, key.FieldType, want)
	}

	return &Repo[T, K]{ctx: c, schema: sch, key: key}, nil
}

// Context returns the unit of work the repo stages into.
func (r *Repo[T, K]) Context() *Context {
	return r.ctx
}

// Table returns the model's table name.
func (r *Repo[T, K]) Table() string {
	return r.schema.Table
}

// KeyColumn returns the identifier column name.
func (r *Repo[T, K]) KeyColumn() string {
	return r.key.DBName
}

// Key returns the identifier of rec.
func (r *Repo[T, K]) Key(rec *T) K {
	var zero K
	v, _ := r.key.ValueOf(context.Background(), reflect.ValueOf(rec).Elem())
	k, ok := v.(K)
	if !ok {
		return zero
	}
	return k
}

// Count returns the number of records matching q. Ordering and paging are ignored.
func (r *Repo[T, K]) Count(ctx context.Context, q Query) (int64, error) {
	db := r.ctx.db.WithContext(ctx).Model(new(T))
	if q.Where != "" {
		db = db.Where(q.Where, q.Args...)
	}

	var n int64
	if err := db.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.schema.Table, err)
	}
	return n, nil
}

// All returns the records matching q.
func (r *Repo[T, K]) All(ctx context.Context, q Query) ([]*T, error) {
	db, err := r.query(ctx, q)
	if err != nil {
		return nil, err
	}

	var out []*T
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", r.schema.Table, err)
	}
	return out, nil
}

// AllAsync runs All on the context queue and hands the result to done.
func (r *Repo[T, K]) AllAsync(ctx context.Context, q Query, done func([]*T, error)) error {
	return r.ctx.Perform(func(*Context) {
		done(r.All(ctx, q))
	})
}

// AllOrdered returns every record ordered by identifier ascending.
func (r *Repo[T, K]) AllOrdered(ctx context.Context) ([]*T, error) {
	return r.All(ctx, Query{Order: []Order{{Column: r.key.DBName}}})
}

// FindOne returns the record with the given identifier, or nil when absent.
func (r *Repo[T, K]) FindOne(ctx context.Context, key K) (*T, error) {
	rec := new(T)
	err := r.ctx.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: r.key.DBName}, Value: key}).
		Take(rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %v: %w", r.schema.Table, key, err)
	}
	return rec, nil
}

// FetchByKeys returns the records whose identifiers are in keys, ordered ascending.
func (r *Repo[T, K]) FetchByKeys(ctx context.Context, keys []K) ([]*T, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	return r.All(ctx, Query{
		Where: "? IN ?",
		Args:  []any{clause.Column{Name: r.key.DBName}, keys},
		Order: []Order{{Column: r.key.DBName}},
	})
}

// New allocates a record and stages it for insertion.
func (r *Repo[T, K]) New() (*T, error) {
	rec := new(T)
	if err := r.ctx.Insert(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert stages rec for insertion.
func (r *Repo[T, K]) Insert(rec *T) error {
	return r.ctx.Insert(rec)
}

// Update stages the current field values of rec.
func (r *Repo[T, K]) Update(rec *T) error {
	return r.ctx.Update(rec)
}

// Delete stages the removal of rec.
func (r *Repo[T, K]) Delete(rec *T) error {
	return r.ctx.Delete(rec)
}

// SetField assigns value to the field named by its Go or column name and stages the update.
func (r *Repo[T, K]) SetField(rec *T, name string, value any) error {
	field := r.schema.LookUpField(name)
	if field == nil {
		return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.schema.Table, name)
	}
	if err := field.Set(context.Background(), reflect.ValueOf(rec).Elem(), value); err != nil {
		return fmt.Errorf("failed to set %s.%s: %w", r.schema.Table, field.DBName, err)
	}
	return r.ctx.Update(rec)
}

// DeleteAll stages the removal of every record of the model.
func (r *Repo[T, K]) DeleteAll(ctx context.Context) (int, error) {
	recs, err := r.All(ctx, Query{})
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := r.ctx.Delete(rec); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}

// Commit flushes the staged changes of the underlying context.
func (r *Repo[T, K]) Commit(ctx context.Context) error {
	return r.ctx.Commit(ctx)
}

// Rollback discards the staged changes of the underlying context.
func (r *Repo[T, K]) Rollback() {
	r.ctx.Rollback()
}

// ApplyBatch writes a whole reconcile plan in one transaction: deletes by key,
// then batched inserts, then updates. Nothing is written when any statement fails.
func (r *Repo[T, K]) ApplyBatch(ctx context.Context, inserts, updates, deletes []*T) error {
	if r.ctx.readOnly {
		return fmt.Errorf("%w: %w", reconcile.ErrCommitFailed, ErrReadOnly)
	}

	err := r.ctx.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(deletes); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(deletes))
			keys := make([]any, 0, end-start)
			for _, rec := range deletes[start:end] {
				keys = append(keys, r.Key(rec))
			}
			err := tx.Where(clause.IN{Column: clause.Column{Name: r.key.DBName}, Values: keys}).
				Delete(new(T)).Error
			if err != nil {
				return fmt.Errorf("failed to delete %d %s: %w", len(keys), r.schema.Table, err)
			}
		}

		if len(inserts) > 0 {
			if err := tx.CreateInBatches(inserts, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert %d %s: %w", len(inserts), r.schema.Table, err)
			}
		}

		for _, rec := range updates {
			if err := tx.Save(rec).Error; err != nil {
				return fmt.Errorf("failed to update %s %v: %w", r.schema.Table, r.Key(rec), err)
			}
		}
		return nil
	})
	if err != nil {
		r.ctx.logger.Error("Failed to apply batch",
			zap.String("table", r.schema.Table),
			zap.Int("inserts", len(inserts)),
			zap.Int("updates", len(updates)),
			zap.Int("deletes", len(deletes)),
			zap.Error(err))
		return fmt.Errorf("%w: %w", reconcile.ErrCommitFailed, err)
	}
	return nil
}

// query applies filters, ordering and paging. Order columns must belong to the model.
func (r *Repo[T, K]) query(ctx context.Context, q Query) (*gorm.DB, error) {
	db := r.ctx.db.WithContext(ctx).Model(new(T))
	if q.Where != "" {
		db = db.Where(q.Where, q.Args...)
	}
	for _, o := range q.Order {
		field := r.schema.LookUpField(o.Column)
		if field == nil || field.DBName == "" {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.schema.Table, o.Column)
		}
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: field.DBName}, Desc: o.Desc})
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db, nil
}
