// Package cliconfig loads the sessionguard CLI's own settings: where the
// engine's base directory lives and its policy knobs. The core itself
// takes no environment variables and no config file (spec.md §6); this
// layer exists only to give the CLI a convenient way to set constructor
// parameters without long flag lists.
package cliconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every policy knob the core's constructors accept, plus
// CLI-only settings (log level, log directory).
type Config struct {
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	MaxWALSize         int64 `json:"max_wal_size" yaml:"max_wal_size"`
	CheckpointInterval int   `json:"checkpoint_interval" yaml:"checkpoint_interval"`

	AutoCheckpointOps  int           `json:"auto_checkpoint_ops" yaml:"auto_checkpoint_ops"`
	AutoCheckpointSecs time.Duration `json:"auto_checkpoint_secs" yaml:"auto_checkpoint_secs"`
	MaxCheckpoints     int           `json:"max_checkpoints" yaml:"max_checkpoints"`

	HeartbeatInterval    time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	DropDetectionTimeout time.Duration `json:"drop_detection_timeout" yaml:"drop_detection_timeout"`

	LogLevel string `json:"log_level" yaml:"log_level"`
	LogDir   string `json:"log_dir" yaml:"log_dir"`

	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns the CLI's out-of-the-box configuration: a base
// directory under the user's home, and every policy knob at the core's
// documented default.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		BaseDir:              filepath.Join(home, ".sessionguard", "data", "session"),
		MaxWALSize:           10 * 1024 * 1024,
		CheckpointInterval:   100,
		AutoCheckpointOps:    10,
		AutoCheckpointSecs:   300 * time.Second,
		MaxCheckpoints:       10,
		HeartbeatInterval:    30 * time.Second,
		DropDetectionTimeout: 120 * time.Second,
		LogLevel:             "info",
		MetricsAddr:          "127.0.0.1:9109",
	}
}

// Load merges Default() with path's contents, if path is non-empty and
// exists. It tries YAML first, then JSON, matching the shape other
// sessionguard-adjacent tools in this codebase use for their config files.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			return cfg, fmt.Errorf("parse config %s (tried YAML and JSON): yaml error: %v, json error: %w", path, err, jsonErr)
		}
	}
	return cfg, nil
}
