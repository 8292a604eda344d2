package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-ai/sessionguard/internal/logging"
	"github.com/fenwick-ai/sessionguard/internal/metrics"
)

// opFile is the on-disk shape of the operations file (spec.md §6).
type opFile struct {
	SessionID  string       `json:"session_id"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Operations []*Operation `json:"operations"`
}

// OperationTracker is the per-session operation state machine (C1).
// All mutating calls atomically rewrite the operations file; rename is the
// commit point.
type OperationTracker struct {
	mu        sync.Mutex
	baseDir   string
	sessionID string
	ops       map[string]*Operation
	order     []string
	logger    *logging.Logger
}

// NewOperationTracker constructs a tracker rooted at baseDir. Call
// StartSession before use.
func NewOperationTracker(baseDir string, logger *logging.Logger) *OperationTracker {
	if logger == nil {
		logger = logging.Default()
	}
	return &OperationTracker{baseDir: baseDir, ops: map[string]*Operation{}, logger: logger}
}

func (t *OperationTracker) path() string {
	return filepath.Join(t.baseDir, "operations", "ops_"+t.sessionID+".json")
}

// StartSession binds the tracker to sessionID, loading any prior operations
// from disk for that id. Parse errors on individual records are skipped
// (best-effort recovery), never abandoning the whole load.
func (t *OperationTracker) StartSession(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessionID = sessionID
	t.ops = map[string]*Operation{}
	t.order = nil

	data, err := os.ReadFile(t.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return durability("read operations file", err)
	}

	var file struct {
		Operations []json.RawMessage `json:"operations"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.logger.Warn("operations file unparsable, starting empty", "session_id", sessionID, "error", err.Error())
		return nil
	}

	for _, raw := range file.Operations {
		var op *Operation
		if err := json.Unmarshal(raw, &op); err != nil || op == nil || op.OpID == "" {
			t.logger.Warn("skipping malformed operation record", "session_id", sessionID)
			continue
		}
		t.ops[op.OpID] = op
		t.order = append(t.order, op.OpID)
	}
	return nil
}

func (t *OperationTracker) persistLocked(ctx context.Context) error {
	ops := make([]*Operation, 0, len(t.order))
	for _, id := range t.order {
		ops = append(ops, t.ops[id])
	}
	file := opFile{SessionID: t.sessionID, UpdatedAt: time.Now().UTC(), Operations: ops}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return durability("marshal operations file", err)
	}
	if err := atomicWriteFile(ctx, t.path(), data, 0640); err != nil {
		t.logger.Error("failed to persist operations file", "session_id", t.sessionID, "error", err.Error())
		return err
	}
	return nil
}

// QueueOperation creates a new operation in state queued.
func (t *OperationTracker) QueueOperation(ctx context.Context, opType string, args ValueMap, parentOpID string, maxRetries int, metadata ValueMap) (*Operation, error) {
	if opType == "" {
		return nil, validation("op_type must not be empty")
	}
	if maxRetries < 0 {
		return nil, validation("max_retries must be non-negative")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	op := &Operation{
		OpID:       shortID(),
		OpType:     opType,
		State:      StateQueued,
		Args:       args,
		ParentOpID: parentOpID,
		MaxRetries: maxRetries,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	t.ops[op.OpID] = op
	t.order = append(t.order, op.OpID)

	if err := t.persistLocked(ctx); err != nil {
		delete(t.ops, op.OpID)
		t.order = t.order[:len(t.order)-1]
		return nil, err
	}
	t.logger.Info("operation queued", "session_id", t.sessionID, "op_id", op.OpID, "op_type", opType)
	metrics.OperationsTotal.WithLabelValues(string(StateQueued)).Inc()
	return op.clone(), nil
}

func (t *OperationTracker) mutate(ctx context.Context, opID string, fn func(*Operation) error) (*Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[opID]
	if !ok {
		return nil, notFound("operation " + opID)
	}

	before := *op
	if err := fn(op); err != nil {
		*op = before
		return nil, err
	}
	if err := t.persistLocked(ctx); err != nil {
		*op = before
		return nil, err
	}
	return op.clone(), nil
}

// StartOperation transitions {queued|recovering} -> in_progress.
func (t *OperationTracker) StartOperation(ctx context.Context, opID string) (*Operation, error) {
	op, err := t.mutate(ctx, opID, func(o *Operation) error {
		return o.transition(StateInProgress, time.Now().UTC())
	})
	if err == nil {
		t.logger.Info("operation started", "session_id", t.sessionID, "op_id", opID)
	}
	return op, err
}

// CompleteOperation transitions in_progress -> completed.
func (t *OperationTracker) CompleteOperation(ctx context.Context, opID string, result *Value) (*Operation, error) {
	op, err := t.mutate(ctx, opID, func(o *Operation) error {
		if err := o.transition(StateCompleted, time.Now().UTC()); err != nil {
			return err
		}
		o.Result = result
		o.Error = ""
		return nil
	})
	if err == nil {
		t.logger.Info("operation completed", "session_id", t.sessionID, "op_id", opID)
		metrics.OperationsTotal.WithLabelValues(string(StateCompleted)).Inc()
	}
	return op, err
}

// FailOperation transitions in_progress -> failed.
func (t *OperationTracker) FailOperation(ctx context.Context, opID string, errMsg string) (*Operation, error) {
	op, err := t.mutate(ctx, opID, func(o *Operation) error {
		if err := o.transition(StateFailed, time.Now().UTC()); err != nil {
			return err
		}
		o.Error = errMsg
		o.Result = nil
		return nil
	})
	if err == nil {
		t.logger.Warn("operation failed", "session_id", t.sessionID, "op_id", opID, "error", errMsg)
		metrics.OperationsTotal.WithLabelValues(string(StateFailed)).Inc()
	}
	return op, err
}

// RetryOperation moves a failed operation back to queued, incrementing
// retry_count and resetting its started/completed timestamps and outcome.
// Returns InvalidTransition if retry_count has reached max_retries, or if
// the operation is not in failed.
func (t *OperationTracker) RetryOperation(ctx context.Context, opID string) (*Operation, error) {
	op, err := t.mutate(ctx, opID, func(o *Operation) error {
		if o.State != StateFailed {
			return invalidTransition(string(o.State) + " -> " + string(StateQueued) + " (retry)")
		}
		if o.RetryCount >= o.MaxRetries {
			return invalidTransition("retry_count exhausted")
		}
		now := time.Now().UTC()
		o.RetryCount++
		o.State = StateQueued
		o.UpdatedAt = now
		o.StartedAt = nil
		o.CompletedAt = nil
		o.Error = ""
		o.Result = nil
		return nil
	})
	if err == nil {
		t.logger.Info("operation retried", "session_id", t.sessionID, "op_id", opID, "retry_count", op.RetryCount)
	}
	return op, err
}

// CancelOperation transitions {queued|recovering} -> cancelled.
func (t *OperationTracker) CancelOperation(ctx context.Context, opID string) (*Operation, error) {
	op, err := t.mutate(ctx, opID, func(o *Operation) error {
		return o.transition(StateCancelled, time.Now().UTC())
	})
	if err == nil {
		t.logger.Info("operation cancelled", "session_id", t.sessionID, "op_id", opID)
		metrics.OperationsTotal.WithLabelValues(string(StateCancelled)).Inc()
	}
	return op, err
}

// RecoverInterruptedOperations bulk-transitions every in_progress operation
// to recovering and returns their ids, in stable (queue) order.
func (t *OperationTracker) RecoverInterruptedOperations(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	var recovered []string
	for _, id := range t.order {
		op := t.ops[id]
		if op.State == StateInProgress {
			op.State = StateRecovering
			op.UpdatedAt = now
			recovered = append(recovered, id)
		}
	}
	if len(recovered) == 0 {
		return nil, nil
	}
	if err := t.persistLocked(ctx); err != nil {
		return nil, err
	}
	t.logger.Warn("marked interrupted operations recovering", "session_id", t.sessionID, "count", len(recovered))
	return recovered, nil
}

// Get returns a copy of the operation, or NotFound.
func (t *OperationTracker) Get(opID string) (*Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[opID]
	if !ok {
		return nil, notFound("operation " + opID)
	}
	return op.clone(), nil
}

// ListByState returns operations in a given state, queue order.
func (t *OperationTracker) ListByState(state OpState) []*Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Operation
	for _, id := range t.order {
		if op := t.ops[id]; op.State == state {
			out = append(out, op.clone())
		}
	}
	return out
}

// History returns every operation sorted by updated_at descending.
func (t *OperationTracker) History(limit int) []*Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Operation, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.ops[id].clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// StatusSummary returns a count of operations per state.
func (t *OperationTracker) StatusSummary() map[OpState]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	summary := map[OpState]int{}
	for _, id := range t.order {
		summary[t.ops[id].State]++
	}
	return summary
}

// Cleanup removes completed operations whose updated_at is older than
// olderThan, returning the count removed.
func (t *OperationTracker) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var kept []string
	removed := 0
	for _, id := range t.order {
		op := t.ops[id]
		if op.State == StateCompleted && op.UpdatedAt.Before(cutoff) {
			delete(t.ops, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	if removed == 0 {
		return 0, nil
	}
	t.order = kept
	if err := t.persistLocked(ctx); err != nil {
		return 0, err
	}
	t.logger.Info("cleaned up completed operations", "session_id", t.sessionID, "removed", removed)
	return removed, nil
}

func shortID() string {
	return uuid.NewString()[:8]
}
