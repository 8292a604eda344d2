// Package testhelpers provides test fixtures: a SessionManager with default
// settings and a quiet logger, rooted at a scratch or given directory.
package testhelpers

import (
	"testing"

	"github.com/fenwick-ai/sessionguard/internal/core"
	"github.com/fenwick-ai/sessionguard/internal/logging"
)

// NewSessionManager returns a SessionManager rooted at a fresh t.TempDir(),
// logging quietly so test output stays readable.
func NewSessionManager(t *testing.T) *core.SessionManager {
	t.Helper()
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Quiet: true})
	return core.NewSessionManager(t.TempDir(), logger)
}

// NewSessionManagerAt returns a SessionManager rooted at an explicit
// directory, for tests that need to reopen an engine against state left by
// a prior one (crash/resume scenarios).
func NewSessionManagerAt(t *testing.T, baseDir string) *core.SessionManager {
	t.Helper()
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Quiet: true})
	return core.NewSessionManager(baseDir, logger)
}
