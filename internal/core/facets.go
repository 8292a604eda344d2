package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var githubURLRe = regexp.MustCompile(`^https://github\.com/([\w.\-]+)/([\w.\-]+?)(?:\.git)?/?$`)

// ParseGitHubURL validates and decomposes a GitHub repository URL of the
// form https://github.com/<owner>/<repo>[.git].
func ParseGitHubURL(repoURL string) (owner, repo string, err error) {
	m := githubURLRe.FindStringSubmatch(strings.TrimSpace(repoURL))
	if m == nil {
		return "", "", validation("malformed github url: " + repoURL)
	}
	return m[1], m[2], nil
}

// RenameSession sets the session's display name.
func (m *SessionManager) RenameSession(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	m.state.Name = name
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// ConnectGitHub parses and attaches a GitHub pointer to the session,
// rejecting a malformed URL before any mutation.
func (m *SessionManager) ConnectGitHub(ctx context.Context, repoURL, branch string) (*GitHubPointer, error) {
	owner, repo, err := ParseGitHubURL(repoURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, notFound("no active session")
	}

	ptr := &GitHubPointer{RepoURL: repoURL, Owner: owner, Repo: repo, Branch: branch, ConnectedAt: time.Now().UTC()}
	m.state.GitHub = ptr
	m.state.UpdatedAt = time.Now().UTC()
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	gh := *ptr
	return &gh, nil
}

// DisconnectGitHub removes the session's GitHub pointer.
func (m *SessionManager) DisconnectGitHub(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	m.state.GitHub = nil
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// GitHubInfo returns the session's GitHub pointer, if any.
func (m *SessionManager) GitHubInfo() (*GitHubPointer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil || m.state.GitHub == nil {
		return nil, false
	}
	gh := *m.state.GitHub
	return &gh, true
}

// AddDocument attaches a document to the session. For doc_type "file", the
// content hash is computed from the file's bytes at add time.
func (m *SessionManager) AddDocument(ctx context.Context, name, path string, docType DocType, description string) (*Document, error) {
	doc := &Document{
		DocID:       uuid.NewString()[:8],
		Name:        name,
		Path:        path,
		DocType:     docType,
		AddedAt:     time.Now().UTC(),
		Description: description,
	}

	if docType == DocTypeFile {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, validation("cannot read document file: " + path)
		}
		sum := sha256.Sum256(data)
		doc.ContentHash = hex.EncodeToString(sum[:])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, notFound("no active session")
	}
	m.state.Documents = append(m.state.Documents, *doc)
	m.state.UpdatedAt = time.Now().UTC()
	if err := m.persistLocked(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveDocument detaches a document by id.
func (m *SessionManager) RemoveDocument(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	idx := -1
	for i, d := range m.state.Documents {
		if d.DocID == docID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("document " + docID)
	}
	m.state.Documents = append(m.state.Documents[:idx], m.state.Documents[idx+1:]...)
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// ListDocuments returns a copy of the session's documents.
func (m *SessionManager) ListDocuments() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	return append([]Document(nil), m.state.Documents...)
}

// AddTags appends tags to the session, skipping ones already present.
func (m *SessionManager) AddTags(ctx context.Context, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	existing := map[string]bool{}
	for _, t := range m.state.Tags {
		existing[t] = true
	}
	for _, t := range tags {
		if !existing[t] {
			m.state.Tags = append(m.state.Tags, t)
			existing[t] = true
		}
	}
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// RemoveTags deletes the given tags from the session if present.
func (m *SessionManager) RemoveTags(ctx context.Context, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return notFound("no active session")
	}
	remove := map[string]bool{}
	for _, t := range tags {
		remove[t] = true
	}
	var kept []string
	for _, t := range m.state.Tags {
		if !remove[t] {
			kept = append(kept, t)
		}
	}
	m.state.Tags = kept
	m.state.UpdatedAt = time.Now().UTC()
	return m.persistLocked(ctx)
}

// SearchQuery filters SearchSessions' results. Zero-value fields are not
// applied as filters.
type SearchQuery struct {
	Query   string
	Tags    []string
	Project string
	Status  SessionStatus
	Limit   int
}

// SearchSessions scans every persisted session file and returns those
// matching q, most recently updated first.
func (m *SessionManager) SearchSessions(q SearchQuery) ([]*SessionState, error) {
	paths, err := m.listSessionFiles()
	if err != nil {
		return nil, err
	}

	var out []*SessionState
	for _, p := range paths {
		s, err := loadSessionStateFile(p)
		if err != nil {
			continue
		}
		if q.Project != "" && s.Project != q.Project {
			continue
		}
		if q.Status != "" && s.Status != q.Status {
			continue
		}
		if q.Query != "" {
			needle := strings.ToLower(q.Query)
			haystack := strings.ToLower(s.Name + " " + s.Goal + " " + s.Project)
			if !strings.Contains(haystack, needle) {
				continue
			}
		}
		if len(q.Tags) > 0 && !hasAllTags(s.Tags, q.Tags) {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func hasAllTags(have, want []string) bool {
	set := map[string]bool{}
	for _, t := range have {
		set[t] = true
	}
	for _, t := range want {
		if !set[t] {
			return false
		}
	}
	return true
}

// ListSessions returns every session, most recently updated first.
func (m *SessionManager) ListSessions(limit int) ([]*SessionState, error) {
	return m.SearchSessions(SearchQuery{Limit: limit})
}

// DeleteSession removes a session's SessionState file from disk.
func (m *SessionManager) DeleteSession(sessionID string) error {
	err := os.Remove(m.statePath(sessionID))
	if os.IsNotExist(err) {
		return notFound("session " + sessionID)
	}
	if err != nil {
		return durability("delete session file", err)
	}
	return nil
}

// exportEnvelope is the JSON shape produced by Export and consumed by
// Import (spec.md §4.4).
type exportEnvelope struct {
	Version     int          `json:"version"`
	Timestamp   time.Time    `json:"timestamp"`
	Session     SessionState `json:"session"`
	Checkpoints []Checkpoint `json:"checkpoints,omitempty"`
	WALEntries  []*WALEntry  `json:"wal_entries,omitempty"`
}

const exportEnvelopeVersion = 1

// ExportSession writes sessionID's full state (and optionally its
// checkpoints and WAL entries) to outputPath as a JSON envelope.
func (m *SessionManager) ExportSession(ctx context.Context, sessionID, outputPath string, includeCheckpoints bool) error {
	state, err := loadSessionStateFile(m.statePath(sessionID))
	if err != nil {
		return err
	}

	env := exportEnvelope{Version: exportEnvelopeVersion, Timestamp: time.Now().UTC(), Session: *state}

	if includeCheckpoints {
		cm := NewCheckpointManager(m.base, m.logger)
		cm.StartSession(sessionID)
		files, err := cm.listFiles()
		if err != nil {
			return err
		}
		for _, f := range files {
			ckpt, err := cm.Load(f.path)
			if err != nil {
				continue
			}
			env.Checkpoints = append(env.Checkpoints, *ckpt)
		}

		wal := NewWriteAheadLog(m.base, m.logger)
		if err := wal.StartSession(sessionID); err == nil {
			entries, err := wal.ReadEntries(1)
			if err == nil {
				env.WALEntries = entries
			}
		}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return durability("marshal export envelope", err)
	}
	if err := os.WriteFile(outputPath, data, 0640); err != nil {
		return durability("write export file", err)
	}
	return nil
}

// ImportSession reads an export envelope and persists it as a new session,
// assigning newSessionID if given or generating one.
func (m *SessionManager) ImportSession(ctx context.Context, inputPath, newSessionID string) (*SessionState, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, validation("cannot read import file: " + inputPath)
	}
	var env exportEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newError(KindIntegrity, "unparsable export envelope", err)
	}

	state := env.Session
	if newSessionID != "" {
		state.SessionID = newSessionID
	} else {
		state.SessionID = genSessionID()
	}
	state.Status = StatusImported
	state.UpdatedAt = time.Now().UTC()

	out, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return nil, durability("marshal imported session", err)
	}
	if err := atomicWriteFile(ctx, m.statePath(state.SessionID), out, 0640); err != nil {
		return nil, err
	}
	return &state, nil
}

// CloneSession copies sourceID's state into a new session, optionally
// overriding its goal, leaving operations/WAL/checkpoints behind (only the
// metadata layer is cloned).
func (m *SessionManager) CloneSession(ctx context.Context, sourceID, newGoal string) (*SessionState, error) {
	src, err := loadSessionStateFile(m.statePath(sourceID))
	if err != nil {
		return nil, err
	}

	clone := src.clone()
	clone.SessionID = genSessionID()
	now := time.Now().UTC()
	clone.StartedAt = now
	clone.UpdatedAt = now
	clone.HeartbeatAt = now
	clone.Status = StatusActive
	clone.ConnectionDrops = 0
	clone.Recoveries = 0
	if newGoal != "" {
		clone.Goal = newGoal
	}

	data, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return nil, durability("marshal cloned session", err)
	}
	if err := atomicWriteFile(ctx, m.statePath(clone.SessionID), data, 0640); err != nil {
		return nil, err
	}
	return clone, nil
}
