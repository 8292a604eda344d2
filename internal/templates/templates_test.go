package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-ai/sessionguard/internal/core"
)

func TestStoreCreateListGetPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir, nil)
	require.NoError(t, err)

	tpl, err := s.Create(ctx, "bugfix", "fix {issue} in {area}", "proj", []string{"bug"}, nil, "")
	require.NoError(t, err)
	assert.NotEmpty(t, tpl.TemplateID)

	got, err := s.Get(tpl.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, "bugfix", got.Name)

	list := s.List()
	require.Len(t, list, 1)

	s2, err := NewStore(dir, nil)
	require.NoError(t, err)
	reloaded := s2.List()
	require.Len(t, reloaded, 1)
	assert.Equal(t, tpl.TemplateID, reloaded[0].TemplateID)
}

func TestStoreGetMissingReturnsError(t *testing.T) {
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = s.Get("nope")
	assert.Error(t, err)
}

func TestStoreUseSubstitutesPlaceholdersAndIncrementsUseCount(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	tpl, err := s.Create(ctx, "bugfix", "fix {issue} in {area}", "default-proj", []string{"bug"}, core.ValueMap{"k": core.StringValue("v")}, "https://github.com/acme/widgets")
	require.NoError(t, err)

	inst, err := s.Use(ctx, tpl.TemplateID, "", "/path", map[string]string{"issue": "123", "area": "auth"})
	require.NoError(t, err)
	assert.Equal(t, "fix 123 in auth", inst.Goal)
	assert.Equal(t, "default-proj", inst.Project)
	assert.Equal(t, "/path", inst.ProjectPath)
	assert.ElementsMatch(t, []string{"bug"}, inst.Tags)
	assert.Equal(t, "https://github.com/acme/widgets", inst.GitHubURL)

	again, err := s.Get(tpl.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.UseCount)
}

func TestStoreUseProjectOverridesDefault(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	tpl, err := s.Create(ctx, "t", "goal", "default-proj", nil, nil, "")
	require.NoError(t, err)

	inst, err := s.Use(ctx, tpl.TemplateID, "override-proj", "/path", nil)
	require.NoError(t, err)
	assert.Equal(t, "override-proj", inst.Project)
}

func TestFromSessionCapturesGoalTagsAndGitHub(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	session := &core.SessionState{
		Goal:    "ship the thing",
		Project: "proj",
		Tags:    []string{"x", "y"},
		GitHub:  &core.GitHubPointer{RepoURL: "https://github.com/acme/widgets"},
	}

	tpl, err := FromSession(ctx, s, session, "captured")
	require.NoError(t, err)
	assert.Equal(t, "ship the thing", tpl.GoalTemplate)
	assert.Equal(t, "proj", tpl.DefaultProject)
	assert.ElementsMatch(t, []string{"x", "y"}, tpl.DefaultTags)
	assert.Equal(t, "https://github.com/acme/widgets", tpl.GitHubRepoURL)
}
