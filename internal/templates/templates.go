// Package templates provides pure-metadata session templates: named goal
// templates with placeholder substitution that produce the initial
// arguments to session.start (spec.md §4.5).
package templates

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

	"github.com/fenwick-ai/sessionguard/internal/core"
	"github.com/fenwick-ai/sessionguard/internal/logging"
)

// Template is a named, reusable starting point for a session.
type Template struct {
	TemplateID      string        `json:"template_id"`
	Name            string        `json:"name"`
	GoalTemplate    string        `json:"goal_template"`
	DefaultProject  string        `json:"default_project,omitempty"`
	DefaultTags     []string      `json:"default_tags,omitempty"`
	DefaultContext  core.ValueMap `json:"default_context,omitempty"`
	GitHubRepoURL   string        `json:"github_repo_url,omitempty"`
	UseCount        int           `json:"use_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Store persists the custom templates file shared by all sessions
// (spec.md §6, templates/custom_templates.json).
type Store struct {
	mu        sync.Mutex
	path      string
	templates map[string]*Template
	order     []string
	logger    *logging.Logger
}

type storeFile struct {
	Templates []*Template `json:"templates"`
}

// NewStore constructs a template store rooted at baseDir and loads any
// existing templates file.
func NewStore(baseDir string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		path:      filepath.Join(baseDir, "templates", "custom_templates.json"),
		templates: map[string]*Template{},
		logger:    logger,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		s.logger.Warn("templates file unparsable, starting empty", "path", s.path, "error", err.Error())
		return nil
	}
	for _, t := range file.Templates {
		if t == nil || t.TemplateID == "" {
			continue
		}
		s.templates[t.TemplateID] = t
		s.order = append(s.order, t.TemplateID)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	out := make([]*Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id])
	}
	data, err := json.MarshalIndent(storeFile{Templates: out}, "", "  ")
	if err != nil {
		return err
	}
	return core.AtomicWriteFile(ctx, s.path, data, 0640)
}

// Create adds a new template.
func (s *Store) Create(ctx context.Context, name, goalTemplate, defaultProject string, defaultTags []string, defaultContext core.ValueMap, githubRepoURL string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	t := &Template{
		TemplateID:     uuid.NewString()[:8],
		Name:           name,
		GoalTemplate:   goalTemplate,
		DefaultProject: defaultProject,
		DefaultTags:    defaultTags,
		DefaultContext: defaultContext,
		GitHubRepoURL:  githubRepoURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.templates[t.TemplateID] = t
	s.order = append(s.order, t.TemplateID)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// FromSession captures session as a reusable template, using its goal
// verbatim as the goal template (no placeholder inference is attempted).
func FromSession(ctx context.Context, s *Store, session *core.SessionState, templateName string) (*Template, error) {
	var tags []string
	if session.Tags != nil {
		tags = append([]string(nil), session.Tags...)
	}
	var ghURL string
	if session.GitHub != nil {
		ghURL = session.GitHub.RepoURL
	}
	return s.Create(ctx, templateName, session.Goal, session.Project, tags, session.Context, ghURL)
}

// List returns every template, most recently updated first.
func (s *Store) List() []*Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Template, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Get returns a template by id.
func (s *Store) Get(templateID string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s not found", templateID)
	}
	return t, nil
}

// Instantiation is the resolved set of session.start arguments produced by
// applying goalVars substitution to a template.
type Instantiation struct {
	Project     string
	ProjectPath string
	Goal        string
	Context     core.ValueMap
	Tags        []string
	GitHubURL   string
}

// Use substitutes {placeholder} tokens in the template's goal with
// goalVars, increments its use count, and returns the resolved session
// arguments.
func (s *Store) Use(ctx context.Context, templateID, project, projectPath string, goalVars map[string]string) (*Instantiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s not found", templateID)
	}

	goal := t.GoalTemplate
	for k, v := range goalVars {
		goal = strings.ReplaceAll(goal, "{"+k+"}", v)
	}

	t.UseCount++
	t.UpdatedAt = time.Now().UTC()
	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}

	if project == "" {
		project = t.DefaultProject
	}

	return &Instantiation{
		Project:     project,
		ProjectPath: projectPath,
		Goal:        goal,
		Context:     t.DefaultContext,
		Tags:        t.DefaultTags,
		GitHubURL:   t.GitHubRepoURL,
	}, nil
}
