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

	"github.com/fenwick-ai/sessionguard/internal/core"
	"github.com/spf13/cobra"
)

func runSessionStart(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")
	path, _ := cmd.Flags().GetString("path")
	goal, _ := cmd.Flags().GetString("goal")

	mgr, err := newEngine()
	if err != nil {
		return err
	}
	state, err := mgr.StartSession(context.Background(), project, path, goal, nil, nil)
	if err != nil {
		return err
	}
	defer mgr.Detach()

	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session started: "+state.SessionID))
	printSessionState(cmd, state)
	return nil
}

func runSessionResume(cmd *cobra.Command, args []string) error {
	var sessionID string
	if len(args) == 1 {
		sessionID = args[0]
	}

	mgr, err := newEngine()
	if err != nil {
		return err
	}
	summary, err := mgr.ResumeSession(context.Background(), sessionID)
	if err != nil {
		return err
	}
	defer mgr.Detach()

	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session resumed: "+summary.SessionID))
	fmt.Fprintf(cmd.OutOrStdout(), "interrupted operations: %v\n", summary.InterruptedOperations)
	fmt.Fprintf(cmd.OutOrStdout(), "uncommitted operations: %d\n", len(summary.UncommittedOperations))
	for _, op := range summary.UncommittedOperations {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s (%s)\n", op.OpID, op.OpType)
	}
	return nil
}

func runSessionStatus(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		printSessionState(cmd, mgr.State())
		return nil
	})
}

func runSessionCheckpoint(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		ckpt, err := mgr.Checkpoint(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("checkpoint written: "+ckpt.CheckpointID))
		return nil
	})
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := mgr.ResumeSession(ctx, args[0]); err != nil {
		return err
	}
	if err := mgr.EndSession(ctx, nil); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session ended: "+args[0]))
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	sessions, err := mgr.ListSessions(limit)
	if err != nil {
		return err
	}
	printSessionTable(cmd, sessions)
	return nil
}

func runSessionRename(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.RenameSession(ctx, args[1])
	})
}

func runSessionSearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	project, _ := cmd.Flags().GetString("project")
	status, _ := cmd.Flags().GetString("status")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	limit, _ := cmd.Flags().GetInt("limit")

	mgr, err := newEngine()
	if err != nil {
		return err
	}
	sessions, err := mgr.SearchSessions(core.SearchQuery{
		Query: query, Project: project, Status: core.SessionStatus(status), Tags: tags, Limit: limit,
	})
	if err != nil {
		return err
	}
	printSessionTable(cmd, sessions)
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	if err := mgr.DeleteSession(args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session deleted: "+args[0]))
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	includeCheckpoints, _ := cmd.Flags().GetBool("include-checkpoints")
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	if err := mgr.ExportSession(context.Background(), args[0], args[1], includeCheckpoints); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session exported to "+args[1]))
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	newID, _ := cmd.Flags().GetString("new-session-id")
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	state, err := mgr.ImportSession(context.Background(), args[0], newID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session imported: "+state.SessionID))
	return nil
}

func runSessionClone(cmd *cobra.Command, args []string) error {
	goal, _ := cmd.Flags().GetString("goal")
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	state, err := mgr.CloneSession(context.Background(), args[0], goal)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session cloned: "+state.SessionID))
	return nil
}

func printSessionState(cmd *cobra.Command, state *core.SessionState) {
	if state == nil {
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "session_id:  %s\n", state.SessionID)
	fmt.Fprintf(w, "project:     %s\n", state.Project)
	fmt.Fprintf(w, "goal:        %s\n", state.Goal)
	fmt.Fprintf(w, "status:      %s\n", state.Status)
	fmt.Fprintf(w, "heartbeat:   %s\n", state.HeartbeatAt.Format("2006-01-02T15:04:05Z"))
	fmt.Fprintf(w, "recoveries:  %d\n", state.Recoveries)
	fmt.Fprintf(w, "tags:        %v\n", state.Tags)
}

func printSessionTable(cmd *cobra.Command, sessions []*core.SessionState) {
	header := []string{"SESSION_ID", "PROJECT", "STATUS", "UPDATED_AT"}
	var rows [][]string
	for _, s := range sessions {
		rows = append(rows, []string{s.SessionID, s.Project, string(s.Status), s.UpdatedAt.Format("2006-01-02T15:04:05Z")})
	}
	table(cmd, header, rows)
}
