package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuildPlan_ActionsInIdentifierOrder tests that decisions come out ascending.
func TestBuildPlan_ActionsInIdentifierOrder(t *testing.T) {
	store := newMemStore(1, 2, 4, 5)

	plan, err := BuildPlan(context.Background(), store, itemAdapter{}, inputs(4, 3, 2))
	require.NoError(t, err)

	var got []ActionType
	var keys []int
	for _, a := range plan.Actions {
		got = append(got, a.Type)
		keys = append(keys, a.Key)
	}

	assert.Equal(t, []ActionType{ActionDelete, ActionUpdate, ActionInsert, ActionUpdate, ActionDelete}, got)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, keys)

	assert.Equal(t, PlanSummary{Inputs: 3, Existing: 4, Inserts: 1, Updates: 2, Deletes: 2}, plan.Summary)
	assert.Equal(t, 5, plan.Writes())
}

// TestBuildPlan_DoesNotTouchStore tests that planning stages nothing.
func TestBuildPlan_DoesNotTouchStore(t *testing.T) {
	store := newMemStore(1, 2)

	plan, err := BuildPlan(context.Background(), store, itemAdapter{}, inputs(2, 3))
	require.NoError(t, err)

	assert.NotEmpty(t, plan.Actions)
	assert.Empty(t, store.pending)
	assert.Zero(t, store.commits)
	assert.Equal(t, "old-2", store.records[2].Name)
}

// TestBuildPlan_UpdateCarriesCopy tests that the planned record is a copy with new values.
func TestBuildPlan_UpdateCarriesCopy(t *testing.T) {
	store := newMemStore(2)

	plan, err := BuildPlan(context.Background(), store, itemAdapter{}, inputs(2))
	require.NoError(t, err)
	require.Len(t, plan.Actions, 1)

	a := plan.Actions[0]
	assert.Equal(t, ActionUpdate, a.Type)
	assert.Equal(t, "new-2", a.Record.Name)
	assert.Equal(t, "old-2", store.records[2].Name)
}

// TestApplyPlan_DryRun tests that a dry run reports counts without writing.
func TestApplyPlan_DryRun(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			store := newMemStore(1, 2, 4, 5)

			res, err := ReconcileMany(context.Background(), store, itemAdapter{}, inputs(2, 3, 4), Options{Mode: mode, DryRun: true})
			require.NoError(t, err)

			assert.True(t, res.DryRun)
			assert.Equal(t, 1, res.Inserted)
			assert.Equal(t, 2, res.Updated)
			assert.Equal(t, 2, res.Deleted)
			assert.Zero(t, store.commits)
			assert.Equal(t, []int{1, 2, 4, 5}, store.ids())
		})
	}
}

// TestApplyPlan_StreamingHonoursCancellation tests that apply stops between actions.
func TestApplyPlan_StreamingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore(1, 2)
	plan, err := BuildPlan(ctx, store, itemAdapter{}, inputs(3, 4))
	require.NoError(t, err)

	store.onCommit = cancel
	res, err := ApplyPlan(ctx, store, plan, Options{Mode: ModeStreaming})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []int{2}, store.ids())
}

// TestReconcileAndApply tests the convenience wrapper.
func TestReconcileAndApply(t *testing.T) {
	store := newMemStore(5)

	plan, res, err := ReconcileAndApply(context.Background(), store, itemAdapter{}, inputs(5, 6), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, plan.Summary.Inserts)
	assert.Equal(t, 1, plan.Summary.Updates)
	assert.Equal(t, 2, res.Changed())
	assert.Equal(t, []int{5, 6}, store.ids())
}

// TestApplyPlan_SkipsUnchangedWrites tests that an unchanged-only plan commits nothing.
func TestApplyPlan_SkipsUnchangedWrites(t *testing.T) {
	store := newMemStore()
	store.records[1] = item{ID: 1, Name: "same"}

	plan, err := BuildPlan(context.Background(), store, itemAdapter{}, []input{{"id": 1, "name": "same"}})
	require.NoError(t, err)
	assert.Zero(t, plan.Writes())
	assert.Equal(t, 1, plan.Summary.Unchanged)

	res, err := ApplyPlan(context.Background(), store, plan, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Zero(t, store.commits)
}
