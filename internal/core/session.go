package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fenwick-ai/sessionguard/internal/logging"
	"github.com/fenwick-ai/sessionguard/internal/metrics"
)

// SessionStatus is one of the five lifecycle states a session occupies.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusRecovered SessionStatus = "recovered"
	StatusCompleted SessionStatus = "completed"
	StatusImported  SessionStatus = "imported"
)

// GitHubPointer links a session to a remote repository (C5).
type GitHubPointer struct {
	RepoURL     string    `json:"repo_url"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	Branch      string    `json:"branch,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// DocType is the kind of content a Document points at.
type DocType string

const (
	DocTypeFile DocType = "file"
	DocTypeURL  DocType = "url"
	DocTypeText DocType = "text"
)

// Document is one piece of session-attached reference material (C5).
type Document struct {
	DocID       string   `json:"doc_id"`
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	DocType     DocType  `json:"doc_type"`
	ContentHash string   `json:"content_hash,omitempty"`
	AddedAt     time.Time `json:"added_at"`
	Description string   `json:"description,omitempty"`
	Metadata    ValueMap `json:"metadata,omitempty"`
}

// SessionState is the durable record of one session (spec.md §3).
type SessionState struct {
	SessionID       string         `json:"session_id"`
	Project         string         `json:"project"`
	ProjectPath     string         `json:"project_path"`
	Goal            string         `json:"goal"`
	Name            string         `json:"name,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Status          SessionStatus  `json:"status"`
	HeartbeatAt     time.Time      `json:"heartbeat_at"`
	ConnectionDrops int            `json:"connection_drops,omitempty"`
	Recoveries      int            `json:"recoveries,omitempty"`
	Context         ValueMap       `json:"context,omitempty"`
	Metadata        ValueMap       `json:"metadata,omitempty"`
	GitHub          *GitHubPointer `json:"github,omitempty"`
	Documents       []Document     `json:"documents,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
}

func (s *SessionState) clone() *SessionState {
	cp := *s
	if s.Context != nil {
		cp.Context = make(ValueMap, len(s.Context))
		for k, v := range s.Context {
			cp.Context[k] = v
		}
	}
	if s.Metadata != nil {
		cp.Metadata = make(ValueMap, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	if s.GitHub != nil {
		gh := *s.GitHub
		cp.GitHub = &gh
	}
	cp.Documents = append([]Document(nil), s.Documents...)
	cp.Tags = append([]string(nil), s.Tags...)
	return &cp
}

// RecoverySummary is returned by ResumeSession: everything the caller must
// decide whether to re-drive (spec.md §7, "user-visible behavior on
// crash").
type RecoverySummary struct {
	SessionID              string            `json:"session_id"`
	InterruptedOperations  []string          `json:"interrupted_operations"`
	UncommittedOperations  []*UncommittedOp  `json:"uncommitted_operations"`
}

const (
	defaultHeartbeatInterval    = 30 * time.Second
	defaultDropDetectionTimeout = 120 * time.Second
)

// SessionManager owns the public API, sequences OperationTracker, WAL and
// CheckpointManager, and implements crash recovery (C4).
type SessionManager struct {
	mu    sync.Mutex
	base  string
	state *SessionState

	Tracker     *OperationTracker
	WAL         *WriteAheadLog
	Checkpoints *CheckpointManager

	HeartbeatInterval    time.Duration
	DropDetectionTimeout time.Duration

	logger *logging.Logger
	hb     *heartbeatTask
}

// NewSessionManager constructs a manager rooted at baseDir (the directory
// in spec.md §6's layout, i.e. `<base>/data/session`).
func NewSessionManager(baseDir string, logger *logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionManager{
		base:                 baseDir,
		Tracker:              NewOperationTracker(baseDir, logger),
		WAL:                  NewWriteAheadLog(baseDir, logger),
		Checkpoints:          NewCheckpointManager(baseDir, logger),
		HeartbeatInterval:    defaultHeartbeatInterval,
		DropDetectionTimeout: defaultDropDetectionTimeout,
		logger:               logger,
	}
}

func (m *SessionManager) statePath(sessionID string) string {
	return filepath.Join(m.base, "robust_"+sessionID+".json")
}

// BaseDir returns the directory the manager is rooted at, for callers
// (e.g. the templates store) that persist sibling state alongside it.
func (m *SessionManager) BaseDir() string {
	return m.base
}

func genSessionID() string {
	return time.Now().UTC().Format("20060102T150405") + "_" + uuid.NewString()[:6]
}

// StartSession creates a new session, initializes all three subsystems,
// records a BEGIN _session_start, persists, forces a checkpoint, and
// starts the heartbeat.
func (m *SessionManager) StartSession(ctx context.Context, project, projectPath, goal string, sessCtx, metadata ValueMap) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	state := &SessionState{
		SessionID:   genSessionID(),
		Project:     project,
		ProjectPath: projectPath,
		Goal:        goal,
		StartedAt:   now,
		UpdatedAt:   now,
		Status:      StatusActive,
		HeartbeatAt: now,
		Context:     sessCtx,
		Metadata:    metadata,
	}
	m.state = state

	if err := m.Tracker.StartSession(state.SessionID); err != nil {
		return nil, err
	}
	if err := m.WAL.StartSession(state.SessionID); err != nil {
		return nil, err
	}
	m.Checkpoints.StartSession(state.SessionID)

	if _, err := m.WAL.LogBegin(ctx, "_session_start", "_session_start", nil); err != nil {
		return nil, err
	}
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	if _, err := m.forceCheckpointLocked(ctx); err != nil {
		return nil, err
	}

	m.hb = newHeartbeatTask(m)
	m.hb.start()
	metrics.ActiveSessions.Inc()

	m.logger.Info("session started", "session_id", state.SessionID, "project", project)
	return state.clone(), nil
}

// mostRecentSessionFile scans the base directory for the SessionState file
// with the greatest updated_at.
func (m *SessionManager) mostRecentSessionFile() (string, error) {
	entries, err := os.ReadDir(m.base)
	if os.IsNotExist(err) {
		return "", notFound("no sessions on disk")
	}
	if err != nil {
		return "", durability("read session dir", err)
	}

	var best string
	var bestTime time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "robust_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.base, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var s SessionState
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		if best == "" || s.UpdatedAt.After(bestTime) {
			best = path
			bestTime = s.UpdatedAt
		}
	}
	if best == "" {
		return "", notFound("no sessions on disk")
	}
	return best, nil
}

// ResumeSession loads a session (the most recently updated one if
// sessionID is empty), re-derives interrupted/uncommitted operations, and
// restarts the heartbeat.
func (m *SessionManager) ResumeSession(ctx context.Context, sessionID string) (*RecoverySummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var path string
	if sessionID == "" {
		p, err := m.mostRecentSessionFile()
		if err != nil {
			return nil, err
		}
		path = p
	} else {
		path = m.statePath(sessionID)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound("session " + sessionID)
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, newError(KindIntegrity, "unparsable session state "+path, err)
	}

	state.Recoveries++
	state.ConnectionDrops++
	state.Status = StatusRecovered
	state.UpdatedAt = time.Now().UTC()
	m.state = &state

	if err := m.Tracker.StartSession(state.SessionID); err != nil {
		return nil, err
	}
	if err := m.WAL.StartSession(state.SessionID); err != nil {
		return nil, err
	}
	m.Checkpoints.StartSession(state.SessionID)

	interrupted, err := m.Tracker.RecoverInterruptedOperations(ctx)
	if err != nil {
		return nil, err
	}
	uncommitted, err := m.WAL.GetUncommittedOperations()
	if err != nil {
		return nil, err
	}

	recoveryData := MapValue(ValueMap{
		"interrupted_operations": stringArrayValue(interrupted),
		"uncommitted_operations": uncommittedArrayValue(uncommitted),
	})
	if _, err := m.WAL.LogBegin(ctx, "_session_recovery", "_session_recovery", ValueMap{"summary": recoveryData}); err != nil {
		return nil, err
	}

	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}

	m.hb = newHeartbeatTask(m)
	m.hb.start()
	metrics.ActiveSessions.Inc()

	m.logger.Warn("session resumed", "session_id", state.SessionID, "interrupted", len(interrupted), "uncommitted", len(uncommitted))
	return &RecoverySummary{SessionID: state.SessionID, InterruptedOperations: interrupted, UncommittedOperations: uncommitted}, nil
}

func stringArrayValue(ss []string) Value {
	out := make([]Value, len(ss))
	for i, s := range ss {
		out[i] = StringValue(s)
	}
	return ArrayValue(out)
}

func uncommittedArrayValue(ops []*UncommittedOp) Value {
	out := make([]Value, len(ops))
	for i, op := range ops {
		out[i] = MapValue(ValueMap{
			"op_id":   StringValue(op.OpID),
			"op_type": StringValue(op.OpType),
			"args":    MapValue(op.Args),
		})
	}
	return ArrayValue(out)
}

// EndSession stops the heartbeat, forces a final checkpoint, appends the
// session's terminal WAL record, marks it completed, and persists.
func (m *SessionManager) EndSession(ctx context.Context, summary ValueMap) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return notFound("no active session")
	}
	if m.hb != nil {
		m.hb.stop()
		metrics.ActiveSessions.Dec()
	}

	if _, err := m.forceCheckpointLocked(ctx); err != nil {
		return err
	}

	var summaryVal *Value
	if summary != nil {
		v := MapValue(summary)
		summaryVal = &v
	}
	if _, err := m.WAL.LogCommit(ctx, "_session_end", summaryVal); err != nil {
		return err
	}

	m.state.Status = StatusCompleted
	m.state.UpdatedAt = time.Now().UTC()
	if err := m.persistLocked(ctx); err != nil {
		return err
	}

	m.logger.Info("session ended", "session_id", m.state.SessionID)
	m.state = nil
	return nil
}

func (m *SessionManager) persistLocked(ctx context.Context) error {
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return durability("marshal session state", err)
	}
	if err := atomicWriteFile(ctx, m.statePath(m.state.SessionID), data, 0640); err != nil {
		return err
	}
	return nil
}

// Detach stops the heartbeat and releases the in-memory session without
// mutating its persisted status — for short-lived callers (e.g. one CLI
// invocation) that resume a session only to perform a single action and
// exit, as opposed to EndSession's permanent completion.
func (m *SessionManager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hb != nil {
		m.hb.stop()
		m.hb = nil
		metrics.ActiveSessions.Dec()
	}
	m.state = nil
}

// Checkpoint forces an immediate checkpoint of the current session.
func (m *SessionManager) Checkpoint(ctx context.Context) (*Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forceCheckpointLocked(ctx)
}

func (m *SessionManager) forceCheckpointLocked(ctx context.Context) (*Checkpoint, error) {
	if m.state == nil {
		return nil, notFound("no active session")
	}

	pending := m.Tracker.ListByState(StateQueued)
	inProgress := m.Tracker.ListByState(StateInProgress)
	pendingIDs := make([]string, len(pending))
	for i, op := range pending {
		pendingIDs[i] = op.OpID
	}
	inProgressIDs := make([]string, len(inProgress))
	for i, op := range inProgress {
		inProgressIDs[i] = op.OpID
	}

	m.Checkpoints.UpdateSequence(m.WAL.CurrentSequence())

	stateVal, err := valueFromJSON(m.state)
	if err != nil {
		return nil, durability("encode session state for checkpoint", err)
	}

	ckpt, err := m.Checkpoints.Capture(ctx, stateVal, pendingIDs, inProgressIDs, m.state.Context, m.state.Metadata)
	if err != nil {
		return nil, err
	}
	if _, err := m.WAL.WriteCheckpoint(ctx, nil); err != nil {
		return nil, err
	}
	return ckpt, nil
}

// UpdateContext sets a key in the session's persisted context map.
func (m *SessionManager) UpdateContext(ctx context.Context, key string, value Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	if m.state.Context == nil {
		m.state.Context = ValueMap{}
	}
	m.state.Context[key] = value
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// GetContext reads a key from the session's context map.
func (m *SessionManager) GetContext(key string) (Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.Context == nil {
		return Value{}, false
	}
	v, ok := m.state.Context[key]
	return v, ok
}

// State returns a copy of the current in-memory session state.
func (m *SessionManager) State() *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return m.state.clone()
}

func valueFromJSON(v any) (*Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	val := fromAny(raw)
	return &val, nil
}

// listSessionFiles returns every session file path in the base directory.
func (m *SessionManager) listSessionFiles() ([]string, error) {
	entries, err := os.ReadDir(m.base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, durability("read session dir", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "robust_") || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(m.base, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func loadSessionStateFile(path string) (*SessionState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFound(fmt.Sprintf("session file %s", path))
	}
	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, newError(KindIntegrity, "unparsable session state "+path, err)
	}
	return &s, nil
}
