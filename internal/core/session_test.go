package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/sessionguard/internal/logging"
)

func newTestSessionManager(t *testing.T, dir string) *SessionManager {
	t.Helper()
	return NewSessionManager(dir, logging.New(logging.Config{Quiet: true}))
}

func TestSessionManagerStartSessionPersistsAndCheckpoints(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	state, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, state.Status)
	mgr.Detach()

	files, err := mgr.Checkpoints.listFiles()
	require.NoError(t, err)
	assert.NotEmpty(t, files, "start_session forces an initial checkpoint")
}

// Concrete scenario 2: crash between BEGIN and COMMIT.
func TestSessionManagerResumeReportsInterruptedAndUncommittedOps(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	state, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	sessionID := state.SessionID

	op, err := mgr.Tracker.QueueOperation(ctx, "work", ValueMap{"n": IntValue(1)}, "", 0, nil)
	require.NoError(t, err)
	_, err = mgr.Tracker.StartOperation(ctx, op.OpID)
	require.NoError(t, err)
	_, err = mgr.WAL.LogBegin(ctx, op.OpID, "work", ValueMap{"n": IntValue(1)})
	require.NoError(t, err)

	// Simulate process termination: drop the in-memory manager without
	// ending the session or completing the operation.
	mgr.hb = nil

	resumed := newTestSessionManager(t, dir)
	summary, err := resumed.ResumeSession(ctx, sessionID)
	require.NoError(t, err)
	defer resumed.Detach()

	assert.Equal(t, []string{op.OpID}, summary.InterruptedOperations)
	require.Len(t, summary.UncommittedOperations, 1)
	assert.Equal(t, op.OpID, summary.UncommittedOperations[0].OpID)
	assert.Equal(t, "work", summary.UncommittedOperations[0].OpType)

	reloaded, err := resumed.Tracker.Get(op.OpID)
	require.NoError(t, err)
	assert.Equal(t, StateRecovering, reloaded.State)
}

// Concrete scenario 5: checkpoint-gated recovery.
func TestSessionManagerCheckpointThenResumeReplaysOnlyPostCheckpointOps(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	state, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	sessionID := state.SessionID

	for i := 0; i < 5; i++ {
		_, err := mgr.RunTracked(ctx, "a", nil, "", 0, nil, func(ctx context.Context, record DataRecorder) (*Value, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
	ckpt, err := mgr.Checkpoint(ctx)
	require.NoError(t, err)
	seqAtCheckpoint := ckpt.Sequence

	for i := 0; i < 3; i++ {
		_, err := mgr.RunTracked(ctx, "b", nil, "", 0, nil, func(ctx context.Context, record DataRecorder) (*Value, error) {
			return nil, nil
		})
		require.NoError(t, err)
	}
	mgr.Detach()

	resumed := newTestSessionManager(t, dir)
	_, err = resumed.ResumeSession(ctx, sessionID)
	require.NoError(t, err)
	defer resumed.Detach()

	post, err := resumed.WAL.ReplayFromCheckpoint(&seqAtCheckpoint)
	require.NoError(t, err)
	for _, e := range post {
		assert.Greater(t, e.Sequence, seqAtCheckpoint)
	}
}

func TestSessionManagerEndSessionClearsStateAndMarksCompleted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	state, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	sessionID := state.SessionID

	require.NoError(t, mgr.EndSession(ctx, nil))
	assert.Nil(t, mgr.State())

	reloaded, err := loadSessionStateFile(mgr.statePath(sessionID))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, reloaded.Status)
}

func TestSessionManagerDetachDoesNotMarkCompleted(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	state, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	sessionID := state.SessionID

	mgr.Detach()
	assert.Nil(t, mgr.State())

	reloaded, err := loadSessionStateFile(mgr.statePath(sessionID))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, reloaded.Status)
}

func TestSessionManagerUpdateAndGetContext(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	mgr := newTestSessionManager(t, dir)

	_, err := mgr.StartSession(ctx, "p", "/path", "g", nil, nil)
	require.NoError(t, err)
	defer mgr.Detach()

	require.NoError(t, mgr.UpdateContext(ctx, "k", StringValue("v")))
	v, ok := mgr.GetContext("k")
	require.True(t, ok)
	s, _ := v.String()
	assert.Equal(t, "v", s)

	_, ok = mgr.GetContext("missing")
	assert.False(t, ok)
}
