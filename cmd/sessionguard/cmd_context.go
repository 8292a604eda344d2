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

func runContextSet(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		return mgr.UpdateContext(ctx, args[1], core.StringValue(args[2]))
	})
}

func runContextGet(cmd *cobra.Command, args []string) error {
	return withSession(args[0], func(ctx context.Context, mgr *core.SessionManager) error {
		v, ok := mgr.GetContext(args[1])
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "<unset>")
			return nil
		}
		if s, ok := v.String(); ok {
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
		return nil
	})
}
