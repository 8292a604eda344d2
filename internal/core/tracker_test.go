package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/sessionguard/internal/logging"
)

func newTestTracker(t *testing.T) *OperationTracker {
	t.Helper()
	tr := NewOperationTracker(t.TempDir(), logging.New(logging.Config{Quiet: true}))
	require.NoError(t, tr.StartSession("sess-1"))
	return tr
}

func TestOperationTrackerHappyPath(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	op, err := tr.QueueOperation(ctx, "echo", ValueMap{"msg": StringValue("hi")}, "", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, op.State)

	op, err = tr.StartOperation(ctx, op.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, op.State)

	result := StringValue("hi")
	op, err = tr.CompleteOperation(ctx, op.OpID, &result)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, op.State)
	assert.NotNil(t, op.CompletedAt)

	reloaded, err := tr.Get(op.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, reloaded.State)
}

// Concrete scenario 3: retry exhaustion.
func TestOperationTrackerRetryExhaustion(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	op, err := tr.QueueOperation(ctx, "work", nil, "", 2, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = tr.StartOperation(ctx, op.OpID)
		require.NoError(t, err)
		_, err = tr.FailOperation(ctx, op.OpID, "boom")
		require.NoError(t, err)
		op, err = tr.RetryOperation(ctx, op.OpID)
		require.NoError(t, err)
		assert.Equal(t, StateQueued, op.State)
	}
	assert.Equal(t, 2, op.RetryCount)

	_, err = tr.StartOperation(ctx, op.OpID)
	require.NoError(t, err)
	_, err = tr.FailOperation(ctx, op.OpID, "boom again")
	require.NoError(t, err)

	_, err = tr.RetryOperation(ctx, op.OpID)
	assert.True(t, IsKind(err, KindInvalidTransition))

	final, err := tr.Get(op.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, final.State)
	assert.Equal(t, 2, final.RetryCount)
}

func TestOperationTrackerCancelFromQueuedAndRecovering(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	queued, err := tr.QueueOperation(ctx, "a", nil, "", 0, nil)
	require.NoError(t, err)
	_, err = tr.CancelOperation(ctx, queued.OpID)
	require.NoError(t, err)

	inProgress, err := tr.QueueOperation(ctx, "b", nil, "", 0, nil)
	require.NoError(t, err)
	_, err = tr.StartOperation(ctx, inProgress.OpID)
	require.NoError(t, err)

	recovered, err := tr.RecoverInterruptedOperations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{inProgress.OpID}, recovered)

	op, err := tr.Get(inProgress.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateRecovering, op.State)

	_, err = tr.CancelOperation(ctx, inProgress.OpID)
	require.NoError(t, err)
}

func TestOperationTrackerDisallowedTransitionLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	op, err := tr.QueueOperation(ctx, "a", nil, "", 0, nil)
	require.NoError(t, err)

	result := StringValue("x")
	_, err = tr.CompleteOperation(ctx, op.OpID, &result)
	assert.True(t, IsKind(err, KindInvalidTransition))

	reloaded, err := tr.Get(op.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateQueued, reloaded.State)
}

func TestOperationTrackerStartSessionToleratesMalformedRecords(t *testing.T) {
	dir := t.TempDir()
	tr := NewOperationTracker(dir, logging.New(logging.Config{Quiet: true}))
	require.NoError(t, tr.StartSession("sess-2"))

	_, err := tr.QueueOperation(context.Background(), "a", nil, "", 0, nil)
	require.NoError(t, err)

	// Append a null record and a record with a wrong-typed field.
	path := filepath.Join(dir, "operations", "ops_sess-2.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var file map[string]any
	require.NoError(t, json.Unmarshal(data, &file))
	ops, _ := file["operations"].([]any)
	file["operations"] = append(ops, nil, map[string]any{"op_id": "bad", "retry_count": "not-a-number"})
	data, err = json.Marshal(file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	// Reopen against the same persisted file; the good record survives.
	tr2 := NewOperationTracker(dir, logging.New(logging.Config{Quiet: true}))
	require.NoError(t, tr2.StartSession("sess-2"))
	assert.Len(t, tr2.History(0), 1)
}

func TestOperationTrackerListByStateAndStatusSummary(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t)

	for i := 0; i < 3; i++ {
		_, err := tr.QueueOperation(ctx, "a", nil, "", 0, nil)
		require.NoError(t, err)
	}
	queued := tr.ListByState(StateQueued)
	assert.Len(t, queued, 3)

	summary := tr.StatusSummary()
	assert.Equal(t, 3, summary[StateQueued])
}
