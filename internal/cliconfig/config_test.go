package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSetsDocumentedKnobs(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(10*1024*1024), cfg.MaxWALSize)
	assert.Equal(t, 100, cfg.CheckpointInterval)
	assert.Equal(t, 10, cfg.MaxCheckpoints)
	assert.Equal(t, "127.0.0.1:9109", cfg.MetricsAddr)
	assert.NotEmpty(t, cfg.BaseDir)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingPathReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesSelectedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_dir: /tmp/custom\nmax_checkpoints: 3\n"), 0640))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", cfg.BaseDir)
	assert.Equal(t, 3, cfg.MaxCheckpoints)
	assert.Equal(t, Default().MaxWALSize, cfg.MaxWALSize, "fields absent from the file keep their default")
}

func TestLoadJSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"base_dir": "/tmp/json-custom", "log_level": "debug"}`), 0640))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/json-custom", cfg.BaseDir)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadUnparsableReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: valid: yaml: ["), 0640))

	_, err := Load(path)
	assert.Error(t, err)
}
