package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fenwick-ai/sessionguard/internal/logging"
	"github.com/fenwick-ai/sessionguard/internal/metrics"
)

const (
	defaultAutoCheckpointOps  = 10
	defaultAutoCheckpointSecs = 300
	defaultMaxCheckpoints     = 10
)

// Checkpoint is a whole-state snapshot at a specific WAL sequence
// (spec.md §3).
type Checkpoint struct {
	CheckpointID      string    `json:"checkpoint_id"`
	SessionID         string    `json:"session_id"`
	Sequence          int64     `json:"sequence"`
	Timestamp         time.Time `json:"timestamp"`
	State             *Value    `json:"state"`
	PendingOpIDs      []string  `json:"pending_op_ids"`
	InProgressOpIDs   []string  `json:"in_progress_op_ids"`
	WorkingMemory     ValueMap  `json:"working_memory,omitempty"`
	Metadata          ValueMap  `json:"metadata,omitempty"`
	Checksum          string    `json:"_checksum,omitempty"`
}

// checksumOf computes the 16-hex-char checksum over the canonical
// (sorted-keys) JSON of every field but the checksum itself.
func checksumOf(c *Checkpoint) (string, error) {
	cp := *c
	cp.Checksum = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return "", err
	}

	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	delete(generic, "_checksum")
	canonical, err := marshalSorted(generic)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16], nil
}

// marshalSorted produces JSON with map keys in sorted order at every level,
// which encoding/json already guarantees for map[string]any — this wrapper
// exists so the checksum computation has one obvious call site.
func marshalSorted(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}

// CheckpointManager produces and consumes atomic, checksum-guarded
// snapshots (C3).
type CheckpointManager struct {
	mu               sync.Mutex
	baseDir          string
	sessionID        string
	sequence         int64
	opsSinceLast     int
	lastCheckpointAt time.Time
	AutoOps          int
	AutoSecs         time.Duration
	MaxCheckpoints   int
	logger           *logging.Logger
	group            singleflight.Group
}

// NewCheckpointManager constructs a manager rooted at baseDir with default
// triggering/retention policy knobs.
func NewCheckpointManager(baseDir string, logger *logging.Logger) *CheckpointManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &CheckpointManager{
		baseDir:        baseDir,
		AutoOps:        defaultAutoCheckpointOps,
		AutoSecs:       defaultAutoCheckpointSecs * time.Second,
		MaxCheckpoints: defaultMaxCheckpoints,
		logger:         logger,
	}
}

func (c *CheckpointManager) dir() string {
	return filepath.Join(c.baseDir, "checkpoints")
}

// StartSession resets the manager's triggering counters for sessionID.
func (c *CheckpointManager) StartSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.opsSinceLast = 0
	c.lastCheckpointAt = time.Now().UTC()
}

// UpdateSequence is C3's explicit handoff point from C2: the caller reads
// the WAL's current sequence and hands it here before Capture.
func (c *CheckpointManager) UpdateSequence(seq int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequence = seq
}

// NoteOperation records that one more operation completed, for the
// ops-since-last-checkpoint trigger.
func (c *CheckpointManager) NoteOperation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opsSinceLast++
}

// Due reports whether a checkpoint should be taken: ops-count threshold,
// elapsed-time threshold, or an explicit force.
func (c *CheckpointManager) Due(force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if force {
		return true
	}
	if c.opsSinceLast >= c.AutoOps {
		return true
	}
	return time.Since(c.lastCheckpointAt) >= c.AutoSecs
}

// Capture serializes a new checkpoint, fsyncs and renames it into place,
// then prunes retention. Concurrent captures for the same session are
// deduplicated.
func (c *CheckpointManager) Capture(ctx context.Context, state *Value, pendingOpIDs, inProgressOpIDs []string, workingMemory, metadata ValueMap) (*Checkpoint, error) {
	key := c.sessionID
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.captureLocked(ctx, state, pendingOpIDs, inProgressOpIDs, workingMemory, metadata)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Checkpoint), nil
}

func (c *CheckpointManager) captureLocked(ctx context.Context, state *Value, pendingOpIDs, inProgressOpIDs []string, workingMemory, metadata ValueMap) (*Checkpoint, error) {
	captureStart := time.Now()
	c.mu.Lock()
	now := time.Now().UTC()
	ckpt := &Checkpoint{
		CheckpointID:    c.sessionID + "_" + now.Format("20060102T150405.000000000Z"),
		SessionID:       c.sessionID,
		Sequence:        c.sequence,
		Timestamp:       now,
		State:           state,
		PendingOpIDs:    pendingOpIDs,
		InProgressOpIDs: inProgressOpIDs,
		WorkingMemory:   workingMemory,
		Metadata:        metadata,
	}
	c.mu.Unlock()

	sum, err := checksumOf(ckpt)
	if err != nil {
		return nil, durability("compute checkpoint checksum", err)
	}
	ckpt.Checksum = sum

	data, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return nil, durability("marshal checkpoint", err)
	}

	path := filepath.Join(c.dir(), fmt.Sprintf("ckpt_%s.json", ckpt.CheckpointID))
	if err := atomicWriteFile(ctx, path, data, 0640); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.opsSinceLast = 0
	c.lastCheckpointAt = now
	c.mu.Unlock()

	c.logger.Info("checkpoint written", "session_id", c.sessionID, "checkpoint_id", ckpt.CheckpointID, "sequence", ckpt.Sequence)
	metrics.CheckpointsTotal.Inc()
	metrics.CheckpointDurationSeconds.Observe(time.Since(captureStart).Seconds())

	if err := c.prune(); err != nil {
		c.logger.Warn("checkpoint retention pruning failed", "session_id", c.sessionID, "error", err.Error())
	}
	return ckpt, nil
}

type checkpointFile struct {
	path    string
	modTime time.Time
}

func (c *CheckpointManager) listFiles() ([]checkpointFile, error) {
	entries, err := os.ReadDir(c.dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, durability("read checkpoints dir", err)
	}
	prefix := "ckpt_" + c.sessionID + "_"
	var out []checkpointFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, checkpointFile{path: filepath.Join(c.dir(), e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].modTime.After(out[j].modTime) })
	return out, nil
}

// prune keeps the session's MaxCheckpoints newest checkpoints by mtime and
// deletes the older ones.
func (c *CheckpointManager) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.MaxCheckpoints {
		return nil
	}
	for _, f := range files[c.MaxCheckpoints:] {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return durability("remove stale checkpoint", err)
		}
	}
	return nil
}

// Load reads and verifies a checkpoint file, rejecting it if the recomputed
// checksum does not match. An absent checksum is tolerated as
// "unverified" and logged, per spec.md §6.
func (c *CheckpointManager) Load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, durability("read checkpoint", err)
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(data, &ckpt); err != nil {
		return nil, newError(KindIntegrity, "unparsable checkpoint "+path, err)
	}

	if ckpt.Checksum == "" {
		c.logger.Warn("checkpoint has no checksum, loading unverified", "path", path)
		return &ckpt, nil
	}

	want := ckpt.Checksum
	got, err := checksumOf(&ckpt)
	if err != nil {
		return nil, durability("recompute checkpoint checksum", err)
	}
	if got != want {
		c.logger.Warn("checkpoint checksum mismatch, rejecting", "path", path)
		return nil, newError(KindIntegrity, "checksum mismatch for "+path, ErrChecksumMismatch)
	}
	return &ckpt, nil
}

// RecoverFromCheckpoint returns the newest-by-mtime checkpoint for the
// session, or nil if none exist. Corrupt or mismatched files are skipped in
// favor of the next-newest, never aborting recovery outright.
func (c *CheckpointManager) RecoverFromCheckpoint() (*Checkpoint, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		ckpt, err := c.Load(f.path)
		if err != nil {
			c.logger.Warn("skipping unusable checkpoint during recovery", "path", f.path, "error", err.Error())
			continue
		}
		return ckpt, nil
	}
	return nil, nil
}
