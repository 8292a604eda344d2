package core

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/sessionguard/internal/logging"
)

func newTestCheckpointManager(t *testing.T) *CheckpointManager {
	t.Helper()
	cm := NewCheckpointManager(t.TempDir(), logging.New(logging.Config{Quiet: true}))
	cm.StartSession("sess-1")
	return cm
}

func TestCheckpointCaptureAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cm := newTestCheckpointManager(t)
	cm.UpdateSequence(42)

	state := MapValue(ValueMap{"goal": StringValue("g")})
	ckpt, err := cm.Capture(ctx, &state, []string{"op-1"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), ckpt.Sequence)
	assert.NotEmpty(t, ckpt.Checksum)

	files, err := cm.listFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	loaded, err := cm.Load(files[0].path)
	require.NoError(t, err)
	assert.Equal(t, ckpt.CheckpointID, loaded.CheckpointID)
}

// Checksum guard: flipping content or the checksum itself must both cause
// load to reject the file.
func TestCheckpointChecksumGuard(t *testing.T) {
	ctx := context.Background()
	cm := newTestCheckpointManager(t)
	state := MapValue(ValueMap{"goal": StringValue("g")})
	_, err := cm.Capture(ctx, &state, nil, nil, nil, nil)
	require.NoError(t, err)

	files, err := cm.listFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)

	original, err := os.ReadFile(files[0].path)
	require.NoError(t, err)

	t.Run("flipped content", func(t *testing.T) {
		tampered := append([]byte(nil), original...)
		for i, b := range tampered {
			if b == 'g' {
				tampered[i] = 'x'
				break
			}
		}
		require.NoError(t, os.WriteFile(files[0].path, tampered, 0640))
		_, err := cm.Load(files[0].path)
		assert.True(t, IsKind(err, KindIntegrity))
		require.NoError(t, os.WriteFile(files[0].path, original, 0640))
	})

	t.Run("flipped checksum", func(t *testing.T) {
		var ckpt Checkpoint
		require.NoError(t, json.Unmarshal(original, &ckpt))
		if ckpt.Checksum[0] == 'a' {
			ckpt.Checksum = "b" + ckpt.Checksum[1:]
		} else {
			ckpt.Checksum = "a" + ckpt.Checksum[1:]
		}
		data, err := json.MarshalIndent(&ckpt, "", "  ")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(files[0].path, data, 0640))
		_, err = cm.Load(files[0].path)
		assert.True(t, IsKind(err, KindIntegrity))
	})
}

func TestCheckpointRetentionPruning(t *testing.T) {
	ctx := context.Background()
	cm := newTestCheckpointManager(t)
	cm.MaxCheckpoints = 3

	for i := 0; i < 6; i++ {
		state := MapValue(ValueMap{"i": IntValue(int64(i))})
		_, err := cm.Capture(ctx, &state, nil, nil, nil, nil)
		require.NoError(t, err)
	}

	files, err := cm.listFiles()
	require.NoError(t, err)
	assert.Len(t, files, 3)
}

func TestCheckpointRecoverFromCheckpointSkipsCorrupt(t *testing.T) {
	ctx := context.Background()
	cm := newTestCheckpointManager(t)

	state := MapValue(ValueMap{"i": IntValue(1)})
	_, err := cm.Capture(ctx, &state, nil, nil, nil, nil)
	require.NoError(t, err)

	files, err := cm.listFiles()
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0].path, []byte("not json"), 0640))

	recovered, err := cm.RecoverFromCheckpoint()
	require.NoError(t, err)
	assert.Nil(t, recovered)
}
