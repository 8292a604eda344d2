package core

import (
	"context"
	"time"
)

// heartbeatTask is the cooperative background task that keeps a session's
// heartbeat_at fresh so observers can detect connection drops
// (spec.md §4.4). It is cancellable and observes cancellation promptly.
type heartbeatTask struct {
	mgr    *SessionManager
	cancel context.CancelFunc
	done   chan struct{}
}

func newHeartbeatTask(mgr *SessionManager) *heartbeatTask {
	return &heartbeatTask{mgr: mgr}
}

func (h *heartbeatTask) start() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.mgr.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.tick(ctx)
			}
		}
	}()
}

func (h *heartbeatTask) tick(ctx context.Context) {
	h.mgr.mu.Lock()
	defer h.mgr.mu.Unlock()
	if h.mgr.state == nil {
		return
	}
	now := time.Now().UTC()
	h.mgr.state.HeartbeatAt = now
	h.mgr.state.UpdatedAt = now
	if err := h.mgr.persistLocked(ctx); err != nil {
		h.mgr.logger.Warn("heartbeat persist failed", "session_id", h.mgr.state.SessionID, "error", err.Error())
	}
}

// stop cancels the task and blocks until its goroutine has exited.
func (h *heartbeatTask) stop() {
	if h == nil || h.cancel == nil {
		return
	}
	h.cancel()
	<-h.done
}

// dropped reports whether state's heartbeat is older than timeout — a
// read-side heuristic, not a state transition (spec.md §4.4).
func dropped(state *SessionState, timeout time.Duration) bool {
	return time.Since(state.HeartbeatAt) > timeout
}
