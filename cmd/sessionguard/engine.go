// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fenwick-ai/sessionguard/internal/cliconfig"
	"github.com/fenwick-ai/sessionguard/internal/cliui"
	"github.com/fenwick-ai/sessionguard/internal/core"
	"github.com/fenwick-ai/sessionguard/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagBaseDir    string
	flagConfigFile string
)

func loadConfig() (cliconfig.Config, error) {
	cfg, err := cliconfig.Load(flagConfigFile)
	if err != nil {
		return cfg, err
	}
	if flagBaseDir != "" {
		cfg.BaseDir = flagBaseDir
	}
	return cfg, nil
}

// newEngine constructs a SessionManager wired from the CLI's configuration.
func newEngine() (*core.SessionManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := logging.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	logger := logging.New(logging.Config{Level: level, LogDir: cfg.LogDir, Service: "sessionguard"})

	mgr := core.NewSessionManager(cfg.BaseDir, logger)
	mgr.WAL.MaxWALSize = cfg.MaxWALSize
	mgr.WAL.CheckpointInterval = cfg.CheckpointInterval
	mgr.Checkpoints.AutoOps = cfg.AutoCheckpointOps
	mgr.Checkpoints.AutoSecs = cfg.AutoCheckpointSecs
	mgr.Checkpoints.MaxCheckpoints = cfg.MaxCheckpoints
	mgr.HeartbeatInterval = cfg.HeartbeatInterval
	mgr.DropDetectionTimeout = cfg.DropDetectionTimeout
	return mgr, nil
}

// withSession resumes sessionID (or the most recently updated session if
// empty), runs fn against the live engine, then detaches. Resuming marks the
// session recovered and counts a recovery and a connection drop in its
// persisted state; detaching writes nothing further.
func withSession(sessionID string, fn func(ctx context.Context, mgr *core.SessionManager) error) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := mgr.ResumeSession(ctx, sessionID); err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	defer mgr.Detach()
	return fn(ctx, mgr)
}

func styles() cliui.Styles {
	return cliui.New(cliui.ColorEnabled(os.Stdout))
}

func exitErr(cmd *cobra.Command, err error) {
	fmt.Fprintln(cmd.ErrOrStderr(), styles().Error.Render("error: "+err.Error()))
	os.Exit(1)
}

func table(cmd *cobra.Command, header []string, rows [][]string) {
	cliui.Table(cmd.OutOrStdout(), header, rows)
}
