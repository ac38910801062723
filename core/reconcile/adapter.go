package reconcile

import (
	"cmp"
	"context"
)

// Adapter binds an entity type to the reconciler.
// I is the authoritative input payload, T the persisted record and K its identifier.
type Adapter[I any, T any, K cmp.Ordered] interface {
	// Name returns the unique name of this adapter (e.g., "stories").
	Name() string

	// InputKey extracts the identifier of an input.
	// It must return an error wrapping ErrMalformedInput when the identifier is
	// missing or has the wrong type, and when any field Apply maps cannot be decoded.
	InputKey(in I) (K, error)

	// RecordKey returns the identifier of a persisted record.
	RecordKey(rec *T) K

	// NewRecord allocates a record carrying the given identifier.
	NewRecord(key K) *T

	// Apply overwrites every mapped field of dst from in.
	// Fields absent from in are reset to their defaults.
	Apply(dst *T, in I)
}

// Comparer is implemented by adapters whose records need a field comparison other
// than reflect.DeepEqual, e.g. to compare time.Time values with Equal.
type Comparer[T any] interface {
	Equal(a, b *T) bool
}

// Store is the persistence capability the reconciler consumes.
// Insert, Update and Delete stage changes that Commit flushes.
type Store[T any, K cmp.Ordered] interface {
	// AllOrdered returns every persisted record ordered by identifier ascending.
	AllOrdered(ctx context.Context) ([]*T, error)

	// FindOne returns the record with the given identifier, or nil when absent.
	FindOne(ctx context.Context, key K) (*T, error)

	// Insert stages a new record.
	Insert(rec *T) error

	// Update stages the new field values of a persisted record.
	Update(rec *T) error

	// Delete stages the removal of a persisted record.
	Delete(rec *T) error

	// Commit flushes staged changes atomically.
	Commit(ctx context.Context) error

	// Rollback discards staged changes.
	Rollback()
}

// BatchApplier is implemented by stores that can apply a whole plan in one transaction
// faster than staging records one by one.
type BatchApplier[T any] interface {
	ApplyBatch(ctx context.Context, inserts, updates, deletes []*T) error
}
