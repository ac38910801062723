// Package reconcile keeps a persisted collection in agreement with an authoritative
// input collection, by identifier, using a single sort-merge pass.
//
// # Architecture
//
// The package consists of three parts:
//
// 1. Engine: sorts the inputs with the canonical comparator (cmp.Compare), reads the
// persisted records in ascending identifier order and walks both sequences with two
// cursors. Each step decides an insert, an update or a delete.
//
// 2. Adapter: entity-specific logic that extracts identifiers, allocates records and
// maps input fields onto them. Inputs the adapter cannot decode are skipped and
// reported, never silently dropped.
//
// 3. Store: the persistence capability (ordered scan, point lookup, staged
// insert/update/delete, commit). Stores implementing BatchApplier receive a whole plan
// in one call.
//
// # Modes
//
// ModeTransactional (the default) accumulates every decision into a Plan and commits it
// once: either the whole pass is persisted or nothing is. ModeStreaming commits each
// decision as it is made, which bounds memory but lets readers observe a partially
// reconciled store. Both modes check the context at every merge step.
//
// # Complexity
//
// O(n log n + m log m) for sorting, then O(n + m) for the walk, instead of one point
// lookup per input.
//
// # Usage Example
//
//	repo, _ := store.NewRepo[stories.Story, int64](container.MainContext())
//	res, err := reconcile.ReconcileMany(ctx, repo, stories.Adapter{}, payloads, reconcile.Options{})
//	if err != nil {
//	    return err
//	}
//	log.Info("reconciled", zap.Int("inserted", res.Inserted), zap.Int("deleted", res.Deleted))
package reconcile
