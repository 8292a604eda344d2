package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTrackedHappyPathCommitsResult(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)
	_, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	defer mgr.Detach()

	var recorded Value
	op, err := mgr.RunTracked(ctx, "echo", ValueMap{"msg": StringValue("hi")}, "", 0, nil,
		func(ctx context.Context, record DataRecorder) (*Value, error) {
			require.NoError(t, record("seen", StringValue("yes")))
			result := StringValue("done")
			recorded = result
			return &result, nil
		})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, op.State)

	s, _ := recorded.String()
	assert.Equal(t, "done", s)

	entries, err := mgr.WAL.ReadEntries(1)
	require.NoError(t, err)
	var sawData, sawCommit bool
	for _, e := range entries {
		if e.OpID == op.OpID && e.EntryType == EntryData {
			sawData = true
		}
		if e.OpID == op.OpID && e.EntryType == EntryCommit {
			sawCommit = true
		}
	}
	assert.True(t, sawData, "body's DATA record must be logged")
	assert.True(t, sawCommit, "successful body must log a COMMIT")
}

func TestRunTrackedBodyErrorFailsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)
	_, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	defer mgr.Detach()

	boom := errors.New("boom")
	op, err := mgr.RunTracked(ctx, "work", nil, "", 0, nil,
		func(ctx context.Context, record DataRecorder) (*Value, error) {
			return nil, boom
		})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, op)
	assert.Equal(t, StateFailed, op.State)
	assert.Equal(t, "boom", op.Error)

	entries, err := mgr.WAL.ReadEntries(1)
	require.NoError(t, err)
	var sawRollback bool
	for _, e := range entries {
		if e.OpID == op.OpID && e.EntryType == EntryRollback {
			sawRollback = true
		}
	}
	assert.True(t, sawRollback)
}

func TestRunTrackedCancellationReportsCancelledAndRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)
	_, err := mgr.StartSession(context.Background(), "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	defer mgr.Detach()

	op, err := mgr.RunTracked(ctx, "work", nil, "", 0, nil,
		func(ctx context.Context, record DataRecorder) (*Value, error) {
			cancel()
			return nil, nil
		})
	require.Error(t, err)
	require.NotNil(t, op)
	assert.Equal(t, StateFailed, op.State)
	assert.Equal(t, "cancelled", op.Error)
}

func TestRunTrackedNestsViaParentOpID(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)
	_, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	defer mgr.Detach()

	parent, err := mgr.RunTracked(ctx, "parent", nil, "", 0, nil,
		func(ctx context.Context, record DataRecorder) (*Value, error) {
			child, err := mgr.RunTracked(ctx, "child", nil, "parent-placeholder", 0, nil,
				func(ctx context.Context, record DataRecorder) (*Value, error) {
					result := StringValue("child done")
					return &result, nil
				})
			require.NoError(t, err)
			assert.Equal(t, StateCompleted, child.State)
			result := StringValue("parent done")
			return &result, nil
		})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, parent.State)
}
