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

	"github.com/fenwick-ai/sessionguard/internal/templates"
	"github.com/spf13/cobra"
)

func templateStore() (*templates.Store, error) {
	mgr, err := newEngine()
	if err != nil {
		return nil, err
	}
	return templates.NewStore(mgr.BaseDir(), nil)
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	store, err := templateStore()
	if err != nil {
		return err
	}
	header := []string{"TEMPLATE_ID", "NAME", "DEFAULT_PROJECT", "USE_COUNT"}
	var rows [][]string
	for _, t := range store.List() {
		rows = append(rows, []string{t.TemplateID, t.Name, t.DefaultProject, fmt.Sprintf("%d", t.UseCount)})
	}
	table(cmd, header, rows)
	return nil
}

func runTemplateUse(cmd *cobra.Command, args []string) error {
	vars, _ := cmd.Flags().GetStringToString("vars")

	mgr, err := newEngine()
	if err != nil {
		return err
	}
	store, err := templates.NewStore(mgr.BaseDir(), nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	inst, err := store.Use(ctx, args[0], args[1], args[2], vars)
	if err != nil {
		return err
	}

	state, err := mgr.StartSession(ctx, inst.Project, inst.ProjectPath, inst.Goal, inst.Context, nil)
	if err != nil {
		return err
	}
	defer mgr.Detach()

	if len(inst.Tags) > 0 {
		if err := mgr.AddTags(ctx, inst.Tags); err != nil {
			return err
		}
	}
	if inst.GitHubURL != "" {
		if _, err := mgr.ConnectGitHub(ctx, inst.GitHubURL, ""); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("session started from template: "+state.SessionID))
	return nil
}

func runTemplateCreate(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	github, _ := cmd.Flags().GetString("github")

	store, err := templateStore()
	if err != nil {
		return err
	}
	t, err := store.Create(context.Background(), args[0], args[1], project, tags, nil, github)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("template created: "+t.TemplateID))
	return nil
}

func runTemplateFromSession(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()
	if _, err := mgr.ResumeSession(ctx, args[0]); err != nil {
		return fmt.Errorf("resume session: %w", err)
	}
	defer mgr.Detach()

	state := mgr.State()
	store, err := templates.NewStore(mgr.BaseDir(), nil)
	if err != nil {
		return err
	}
	t, err := templates.FromSession(ctx, store, state, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("template captured: "+t.TemplateID))
	return nil
}
