// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"

	"github.com/fenwick-ai/sessionguard/internal/templates"
	"github.com/spf13/cobra"
)

func runAnalyticsSummary(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	s, err := templates.Summarize(mgr)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "total_sessions: %d\n", s.TotalSessions)
	fmt.Fprintln(w, "by_status:")
	for status, count := range s.ByStatus {
		fmt.Fprintf(w, "  %-12s %d\n", status, count)
	}
	fmt.Fprintln(w, "by_project:")
	for project, count := range s.ByProject {
		fmt.Fprintf(w, "  %-12s %d\n", project, count)
	}
	return nil
}

func runAnalyticsProject(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	r, err := templates.ProjectReport(mgr, args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "project:        %s\n", r.Project)
	fmt.Fprintf(w, "total_sessions: %d\n", r.TotalSessions)
	fmt.Fprintln(w, "by_status:")
	for status, count := range r.ByStatus {
		fmt.Fprintf(w, "  %-12s %d\n", status, count)
	}
	fmt.Fprintln(w, "tags:")
	for tag, count := range r.Tags {
		fmt.Fprintf(w, "  %-12s %d\n", tag, count)
	}
	return nil
}

func runAnalyticsTimeline(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	timeline, err := templates.Timeline(mgr, days)
	if err != nil {
		return err
	}
	header := []string{"DATE", "COUNT"}
	var rows [][]string
	for _, d := range timeline {
		rows = append(rows, []string{d.Date, fmt.Sprintf("%d", d.Count)})
	}
	table(cmd, header, rows)
	return nil
}

func runAnalyticsTags(cmd *cobra.Command, args []string) error {
	mgr, err := newEngine()
	if err != nil {
		return err
	}
	ranking, err := templates.TagRanking(mgr)
	if err != nil {
		return err
	}
	header := []string{"TAG", "COUNT"}
	var rows [][]string
	for _, t := range ranking {
		rows = append(rows, []string{t.Tag, fmt.Sprintf("%d", t.Count)})
	}
	table(cmd, header, rows)
	return nil
}
