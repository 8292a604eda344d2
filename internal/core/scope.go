package core

import (
	"context"
)

// DataRecorder lets a tracked scope's body append intermediate DATA
// records under its own op_id.
type DataRecorder func(key string, value Value) error

// TrackedBody is the caller-supplied unit of work run inside a tracked
// scope. Returning a non-nil error fails the operation; returning a result
// completes it.
type TrackedBody func(ctx context.Context, record DataRecorder) (*Value, error)

// RunTracked is the tracked-operation scope (spec.md §4.4): it queues and
// starts an operation, records BEGIN before running body, records the
// terminal COMMIT/ROLLBACK on every exit path including cancellation, and
// triggers a checkpoint if one is due. The scope is nestable via
// parentOpID.
func (m *SessionManager) RunTracked(ctx context.Context, opType string, args ValueMap, parentOpID string, maxRetries int, metadata ValueMap, body TrackedBody) (*Operation, error) {
	op, err := m.Tracker.QueueOperation(ctx, opType, args, parentOpID, maxRetries, metadata)
	if err != nil {
		return nil, err
	}

	if op, err = m.Tracker.StartOperation(ctx, op.OpID); err != nil {
		return nil, err
	}
	if _, err := m.WAL.LogBegin(ctx, op.OpID, opType, args); err != nil {
		return nil, err
	}

	record := func(key string, value Value) error {
		_, err := m.WAL.LogData(ctx, op.OpID, key, value)
		return err
	}

	result, bodyErr := body(ctx, record)
	if bodyErr == nil && ctx.Err() != nil {
		bodyErr = ctx.Err()
	}

	var final *Operation
	var finalErr error
	if bodyErr != nil {
		errMsg := bodyErr.Error()
		if ctx.Err() != nil {
			errMsg = "cancelled"
		}
		final, finalErr = m.Tracker.FailOperation(ctx, op.OpID, errMsg)
		if finalErr == nil {
			_, finalErr = m.WAL.LogRollback(ctx, op.OpID, errMsg)
		}
		if finalErr == nil {
			finalErr = bodyErr
		}
	} else {
		final, finalErr = m.Tracker.CompleteOperation(ctx, op.OpID, result)
		if finalErr == nil {
			_, finalErr = m.WAL.LogCommit(ctx, op.OpID, result)
		}
	}

	m.Checkpoints.NoteOperation()
	if m.Checkpoints.Due(false) {
		if _, err := m.Checkpoint(ctx); err != nil {
			m.logger.Warn("scope-triggered checkpoint failed", "op_id", op.OpID, "error", err.Error())
		}
	}

	return final, finalErr
}
