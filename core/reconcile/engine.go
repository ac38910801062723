package reconcile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// keyed is an input whose identifier has been extracted.
type keyed[I any, K cmp.Ordered] struct {
	key   K
	index int
	input I
}

// ReconcileOne finds the record matching the input identifier, creates it when absent,
// overwrites its fields from the input and commits.
// Applying the same input twice yields the same final state; the second call writes nothing.
// A malformed input is reported as a skip and nothing is written.
func ReconcileOne[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], adapter Adapter[I, T, K], in I) (*Result[K], error) {
	res := &Result[K]{Mode: ModeTransactional}

	key, err := adapter.InputKey(in)
	if err != nil {
		res.record(Outcome[K]{Op: ActionSkip, Index: 0, Err: malformed(err)})
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	existing, err := store.FindOne(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %v: %w", adapter.Name(), key, err)
	}

	var a Action[I, T, K]
	if existing == nil {
		a = insertAction(adapter, keyed[I, K]{key: key, input: in})
	} else {
		a = matchAction(adapter, keyed[I, K]{key: key, input: in}, existing)
	}

	if err := applyOne(ctx, store, a); err != nil {
		res.record(Outcome[K]{Op: a.Type, Key: key, Err: err})
		return res, fmt.Errorf("failed to %s %s %v: %w", a.Type, adapter.Name(), key, err)
	}

	res.record(Outcome[K]{Op: a.Type, Key: key})
	return res, nil
}

// ReconcileMany makes the persisted records match inputs exactly, by identifier.
//
// Inputs are sorted with the canonical comparator and merged against the store's
// ordered scan in a single pass: inputs without a persisted counterpart are inserted,
// matches are overwritten and persisted records without an input are deleted.
// Decisions are issued in ascending identifier order.
//
// The returned error reports a failure of the pass as a whole: a store read error, an
// ordering violation, cancellation, or a failed transactional commit. Per-record
// problems (skipped inputs, streaming commit failures) are reported in the Result.
func ReconcileMany[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], adapter Adapter[I, T, K], inputs []I, opts Options) (*Result[K], error) {
	if opts.DryRun || opts.mode() == ModeTransactional {
		plan, err := BuildPlan(ctx, store, adapter, inputs)
		if err != nil {
			return nil, err
		}
		return ApplyPlan(ctx, store, plan, opts)
	}

	sorted, skipped := prepare(adapter, inputs)
	existing, err := loadExisting(ctx, store, adapter)
	if err != nil {
		return nil, err
	}

	res := &Result[K]{Mode: ModeStreaming}
	for _, s := range skipped {
		res.record(s)
	}

	err = walk(ctx, adapter, sorted, existing, func(a Action[I, T, K]) {
		res.record(Outcome[K]{Op: a.Type, Key: a.Key, Index: a.Index, Err: applyOne(ctx, store, a)})
	})
	return res, err
}

// prepare extracts identifiers, sorts the keyed inputs and rejects malformed inputs
// and later duplicates. Rejected inputs never take part in the merge walk.
func prepare[I any, T any, K cmp.Ordered](adapter Adapter[I, T, K], inputs []I) ([]keyed[I, K], []Outcome[K]) {
	var skipped []Outcome[K]
	sorted := make([]keyed[I, K], 0, len(inputs))

	for i, in := range inputs {
		key, err := adapter.InputKey(in)
		if err != nil {
			skipped = append(skipped, Outcome[K]{Op: ActionSkip, Index: i, Err: malformed(err)})
			continue
		}
		sorted = append(sorted, keyed[I, K]{key: key, index: i, input: in})
	}

	// Stable so the first occurrence of a duplicate identifier wins.
	slices.SortStableFunc(sorted, func(a, b keyed[I, K]) int {
		return cmp.Compare(a.key, b.key)
	})

	unique := sorted[:0]
	for _, k := range sorted {
		if len(unique) > 0 && cmp.Compare(unique[len(unique)-1].key, k.key) == 0 {
			skipped = append(skipped, Outcome[K]{
				Op:    ActionSkip,
				Key:   k.key,
				Index: k.index,
				Err:   fmt.Errorf("%w: %v", ErrDuplicateKey, k.key),
			})
			continue
		}
		unique = append(unique, k)
	}

	return unique, skipped
}

// loadExisting reads the persisted records and verifies they are strictly ascending
// under the canonical comparator.
func loadExisting[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], adapter Adapter[I, T, K]) ([]*T, error) {
	existing, err := store.AllOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted %s: %w", adapter.Name(), err)
	}

	for i := 1; i < len(existing); i++ {
		prev, cur := adapter.RecordKey(existing[i-1]), adapter.RecordKey(existing[i])
		if cmp.Compare(prev, cur) >= 0 {
			return nil, fmt.Errorf("%w: %s %v is ordered after %v", ErrOrderingViolation, adapter.Name(), cur, prev)
		}
	}

	return existing, nil
}

// walk runs the two-cursor merge and hands every decision to emit.
// The context is checked before each step.
func walk[I any, T any, K cmp.Ordered](ctx context.Context, adapter Adapter[I, T, K], inputs []keyed[I, K], existing []*T, emit func(Action[I, T, K])) error {
	i, e := 0, 0

	for i < len(inputs) {
		if err := ctx.Err(); err != nil {
			return err
		}

		in := inputs[i]
		if e >= len(existing) {
			emit(insertAction(adapter, in))
			i++
			continue
		}

		ex := existing[e]
		switch c := cmp.Compare(in.key, adapter.RecordKey(ex)); {
		case c < 0:
			emit(insertAction(adapter, in))
			i++
		case c == 0:
			emit(matchAction(adapter, in, ex))
			i++
			e++
		default:
			emit(deleteAction(adapter, ex))
			e++
		}
	}

	for ; e < len(existing); e++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(deleteAction(adapter, existing[e]))
	}

	return nil
}

func insertAction[I any, T any, K cmp.Ordered](adapter Adapter[I, T, K], in keyed[I, K]) Action[I, T, K] {
	rec := adapter.NewRecord(in.key)
	adapter.Apply(rec, in.input)
	return Action[I, T, K]{Type: ActionInsert, Key: in.key, Index: in.index, Input: in.input, Record: rec}
}

// matchAction applies the input to a copy of the persisted record so planning never
// mutates what the store returned. Apply must assign fields rather than mutate values
// shared with the original.
func matchAction[I any, T any, K cmp.Ordered](adapter Adapter[I, T, K], in keyed[I, K], ex *T) Action[I, T, K] {
	updated := new(T)
	*updated = *ex
	adapter.Apply(updated, in.input)

	var same bool
	if c, ok := adapter.(Comparer[T]); ok {
		same = c.Equal(updated, ex)
	} else {
		same = reflect.DeepEqual(updated, ex)
	}

	if same {
		return Action[I, T, K]{Type: ActionUnchanged, Key: in.key, Index: in.index, Input: in.input, Record: ex}
	}
	return Action[I, T, K]{Type: ActionUpdate, Key: in.key, Index: in.index, Input: in.input, Record: updated}
}

func deleteAction[I any, T any, K cmp.Ordered](adapter Adapter[I, T, K], ex *T) Action[I, T, K] {
	return Action[I, T, K]{Type: ActionDelete, Key: adapter.RecordKey(ex), Index: -1, Record: ex}
}

func malformed(err error) error {
	if errors.Is(err, ErrMalformedInput) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrMalformedInput, err)
}

func commitFailure(err error) error {
	if errors.Is(err, ErrCommitFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCommitFailed, err)
}
