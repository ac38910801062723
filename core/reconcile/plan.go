package reconcile

import (
	"cmp"
	"context"
	"fmt"
)

// BuildPlan runs the merge walk and returns the decisions without executing them.
// Records are prepared in memory; nothing is staged on the store. Use ApplyPlan to
// execute the plan.
func BuildPlan[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], adapter Adapter[I, T, K], inputs []I) (*Plan[I, T, K], error) {
	sorted, skipped := prepare(adapter, inputs)

	existing, err := loadExisting(ctx, store, adapter)
	if err != nil {
		return nil, err
	}

	plan := &Plan[I, T, K]{
		Skipped: skipped,
		Summary: PlanSummary{
			Inputs:   len(inputs),
			Existing: len(existing),
			Skipped:  len(skipped),
		},
	}

	err = walk(ctx, adapter, sorted, existing, func(a Action[I, T, K]) {
		plan.Actions = append(plan.Actions, a)
		switch a.Type {
		case ActionInsert:
			plan.Summary.Inserts++
		case ActionUpdate:
			plan.Summary.Updates++
		case ActionDelete:
			plan.Summary.Deletes++
		case ActionUnchanged:
			plan.Summary.Unchanged++
		}
	})
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// Writes returns the number of actions that touch the store.
func (p *Plan[I, T, K]) Writes() int {
	return p.Summary.Inserts + p.Summary.Updates + p.Summary.Deletes
}

// ApplyPlan executes the actions of a plan.
//
// In transactional mode every write is committed in a single transaction: when the
// commit fails each write is reported as failed and nothing is persisted. Stores that
// implement BatchApplier receive the whole plan at once; others are staged record by
// record in plan order and committed once.
//
// In streaming mode writes are committed one at a time in plan order and a failure
// only affects its own record.
//
// With opts.DryRun nothing is written and the result reports the planned counts.
func ApplyPlan[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], plan *Plan[I, T, K], opts Options) (*Result[K], error) {
	res := &Result[K]{Mode: opts.mode(), DryRun: opts.DryRun}
	for _, s := range plan.Skipped {
		res.record(s)
	}

	if opts.DryRun {
		for _, a := range plan.Actions {
			res.record(Outcome[K]{Op: a.Type, Key: a.Key, Index: a.Index})
		}
		return res, nil
	}

	if opts.mode() == ModeStreaming {
		for _, a := range plan.Actions {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.record(Outcome[K]{Op: a.Type, Key: a.Key, Index: a.Index, Err: applyOne(ctx, store, a)})
		}
		return res, nil
	}

	if plan.Writes() > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := applyAll(ctx, store, plan.Actions); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
			err = commitFailure(err)
			for _, a := range plan.Actions {
				o := Outcome[K]{Op: a.Type, Key: a.Key, Index: a.Index}
				if a.Type != ActionUnchanged {
					o.Err = err
				}
				res.record(o)
			}
			return res, fmt.Errorf("failed to apply %d actions: %w", plan.Writes(), err)
		}
	}

	for _, a := range plan.Actions {
		res.record(Outcome[K]{Op: a.Type, Key: a.Key, Index: a.Index})
	}
	return res, nil
}

// ReconcileAndApply is a convenience wrapper that plans and applies in one call.
// It returns the plan alongside the result so callers can report planned actions.
func ReconcileAndApply[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], adapter Adapter[I, T, K], inputs []I, opts Options) (*Plan[I, T, K], *Result[K], error) {
	plan, err := BuildPlan(ctx, store, adapter, inputs)
	if err != nil {
		return nil, nil, err
	}

	res, err := ApplyPlan(ctx, store, plan, opts)
	return plan, res, err
}

// applyAll commits every write of a plan together.
func applyAll[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], actions []Action[I, T, K]) error {
	if batcher, ok := store.(BatchApplier[T]); ok {
		var inserts, updates, deletes []*T
		for _, a := range actions {
			switch a.Type {
			case ActionInsert:
				inserts = append(inserts, a.Record)
			case ActionUpdate:
				updates = append(updates, a.Record)
			case ActionDelete:
				deletes = append(deletes, a.Record)
			}
		}
		return batcher.ApplyBatch(ctx, inserts, updates, deletes)
	}

	// Fallback to staging one record at a time with a single commit.
	for _, a := range actions {
		if err := stage(store, a); err != nil {
			store.Rollback()
			return err
		}
	}
	if err := store.Commit(ctx); err != nil {
		store.Rollback()
		return err
	}
	return nil
}

// applyOne stages and commits a single action.
// Unchanged matches are not written.
func applyOne[I any, T any, K cmp.Ordered](ctx context.Context, store Store[T, K], a Action[I, T, K]) error {
	if a.Type == ActionUnchanged {
		return nil
	}

	err := stage(store, a)
	if err == nil {
		err = store.Commit(ctx)
	}
	if err != nil {
		store.Rollback()
		return commitFailure(err)
	}
	return nil
}

func stage[I any, T any, K cmp.Ordered](store Store[T, K], a Action[I, T, K]) error {
	switch a.Type {
	case ActionInsert:
		return store.Insert(a.Record)
	case ActionUpdate:
		return store.Update(a.Record)
	case ActionDelete:
		return store.Delete(a.Record)
	}
	return nil
}
