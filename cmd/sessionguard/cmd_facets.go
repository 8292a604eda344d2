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

func runGitHubConnect(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		ptr, err := mgr.ConnectGitHub(ctx, args[1], "")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render(fmt.Sprintf("connected %s/%s", ptr.Owner, ptr.Repo)))
		return nil
	})
}

func runGitHubDisconnect(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.DisconnectGitHub(ctx)
	})
}

func runGitHubInfo(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		ptr, ok := mgr.GitHubInfo()
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "<not connected>")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "repo_url: %s\nbranch:   %s\n", ptr.RepoURL, ptr.Branch)
		return nil
	})
}

func runDocAdd(cmd *cobra.Command, args []string) error {
	docType, _ := cmd.Flags().GetString("type")
	description, _ := cmd.Flags().GetString("description")
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		doc, err := mgr.AddDocument(ctx, args[1], args[2], core.DocType(docType), description)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("document added: "+doc.DocID))
		return nil
	})
}

func runDocRemove(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.RemoveDocument(ctx, args[1])
	})
}

func runDocList(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		docs := mgr.ListDocuments()
		header := []string{"DOC_ID", "NAME", "TYPE", "PATH"}
		var rows [][]string
		for _, d := range docs {
			rows = append(rows, []string{d.DocID, d.Name, string(d.DocType), d.Path})
		}
		table(cmd, header, rows)
		return nil
	})
}

func runTagsAdd(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.AddTags(ctx, args[1:])
	})
}

func runTagsRemove(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.RemoveTags(ctx, args[1:])
	})
}
