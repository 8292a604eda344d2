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

func runOpStatus(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		op, err := mgr.Tracker.Get(args[1])
		if err != nil {
			return err
		}
		printOpTable(cmd, []*core.Operation{op})
		return nil
	})
}

func runOpList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	filter := "history"
	if len(args) > 1 {
		filter = args[1]
	}
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		var ops []*core.Operation
		switch filter {
		case "pending":
			ops = mgr.Tracker.ListByState(core.StateQueued)
		case "failed":
			ops = mgr.Tracker.ListByState(core.StateFailed)
		case "failed_retryable":
			for _, op := range mgr.Tracker.ListByState(core.StateFailed) {
				if op.RetryCount < op.MaxRetries {
					ops = append(ops, op)
				}
			}
		case "history":
			ops = mgr.Tracker.History(limit)
		default:
			return fmt.Errorf("unknown filter %q (want pending, failed, failed_retryable, history)", filter)
		}
		printOpTable(cmd, ops)
		return nil
	})
}

func runOpRetry(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		op, err := mgr.Tracker.RetryOperation(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render(fmt.Sprintf("operation %s retried (retry_count=%d)", op.OpID, op.RetryCount)))
		return nil
	})
}

func runOpCancel(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		op, err := mgr.Tracker.CancelOperation(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styles().Success.Render("operation cancelled: "+op.OpID))
		return nil
	})
}

func printOpTable(cmd *cobra.Command, ops []*core.Operation) {
	header := []string{"OP_ID", "OP_TYPE", "STATE", "RETRY_COUNT", "UPDATED_AT"}
	var rows [][]string
	for _, op := range ops {
		rows = append(rows, []string{
			op.OpID, op.OpType, string(op.State),
			fmt.Sprintf("%d/%d", op.RetryCount, op.MaxRetries),
			op.UpdatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}
	table(cmd, header, rows)
}
