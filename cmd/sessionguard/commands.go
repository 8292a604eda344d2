// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "sessionguard",
	Short: "Inspect and drive the crash-safe session execution engine",
	Long: `sessionguard is a CLI front end over a crash-safe session execution
engine: operations, write-ahead log, checkpoints and session lifecycle,
all durable across process restarts.`,
}

// --- session ---
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage session lifecycle and metadata",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new session",
	RunE:  runSessionStart,
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume [session_id]",
	Short: "Resume a session after a reconnect or crash",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionResume,
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session_id>",
	Short: "Show a session's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionStatus,
}

var sessionCheckpointCmd = &cobra.Command{
	Use:   "checkpoint <session_id>",
	Short: "Force an immediate checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionCheckpoint,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session_id>",
	Short: "End a session permanently",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEnd,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently updated first",
	RunE:  runSessionList,
}

var sessionRenameCmd = &cobra.Command{
	Use:   "rename <session_id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionRename,
}

var sessionSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search sessions by text, project, status, or tags",
	RunE:  runSessionSearch,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <session_id>",
	Short: "Delete a session's state file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session_id> <output_path>",
	Short: "Export a session to a JSON envelope",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionExport,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <input_path>",
	Short: "Import a session from a JSON envelope",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionImport,
}

var sessionCloneCmd = &cobra.Command{
	Use:   "clone <session_id>",
	Short: "Clone a session's metadata into a new one",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClone,
}

// --- op ---
var opCmd = &cobra.Command{
	Use:   "op",
	Short: "Inspect and drive tracked operations",
}

var opStatusCmd = &cobra.Command{
	Use:   "status <session_id> <op_id>",
	Short: "Show one operation's state",
	Args:  cobra.ExactArgs(2),
	RunE:  runOpStatus,
}

var opListCmd = &cobra.Command{
	Use:   "list <session_id> [filter]",
	Short: "List operations by filter: pending, failed, failed_retryable, history (default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runOpList,
}

var opRetryCmd = &cobra.Command{
	Use:   "retry <session_id> <op_id>",
	Short: "Retry a failed operation",
	Args:  cobra.ExactArgs(2),
	RunE:  runOpRetry,
}

var opCancelCmd = &cobra.Command{
	Use:   "cancel <session_id> <op_id>",
	Short: "Cancel a queued or recovering operation",
	Args:  cobra.ExactArgs(2),
	RunE:  runOpCancel,
}

// --- context ---
var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Read and write a session's persisted context map",
}

var contextSetCmd = &cobra.Command{
	Use:   "set <session_id> <key> <value>",
	Short: "Set a context key to a string value",
	Args:  cobra.ExactArgs(3),
	RunE:  runContextSet,
}

var contextGetCmd = &cobra.Command{
	Use:   "get <session_id> <key>",
	Short: "Get a context key",
	Args:  cobra.ExactArgs(2),
	RunE:  runContextGet,
}

// --- github ---
var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Manage a session's GitHub repository pointer",
}

var githubConnectCmd = &cobra.Command{
	Use:   "connect <session_id> <repo_url>",
	Short: "Attach a GitHub repository pointer",
	Args:  cobra.ExactArgs(2),
	RunE:  runGitHubConnect,
}

var githubDisconnectCmd = &cobra.Command{
	Use:   "disconnect <session_id>",
	Short: "Remove a session's GitHub pointer",
	Args:  cobra.ExactArgs(1),
	RunE:  runGitHubDisconnect,
}

var githubInfoCmd = &cobra.Command{
	Use:   "info <session_id>",
	Short: "Show a session's GitHub pointer",
	Args:  cobra.ExactArgs(1),
	RunE:  runGitHubInfo,
}

// --- doc ---
var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage a session's attached documents",
}

var docAddCmd = &cobra.Command{
	Use:   "add <session_id> <name> <path>",
	Short: "Attach a document",
	Args:  cobra.ExactArgs(3),
	RunE:  runDocAdd,
}

var docRemoveCmd = &cobra.Command{
	Use:   "remove <session_id> <doc_id>",
	Short: "Detach a document",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocRemove,
}

var docListCmd = &cobra.Command{
	Use:   "list <session_id>",
	Short: "List attached documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocList,
}

// --- tags ---
var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage a session's tags",
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <session_id> <tag...>",
	Short: "Add tags",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTagsAdd,
}

var tagsRemoveCmd = &cobra.Command{
	Use:   "remove <session_id> <tag...>",
	Short: "Remove tags",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTagsRemove,
}

// --- template ---
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage and use session templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE:  runTemplateList,
}

var templateUseCmd = &cobra.Command{
	Use:   "use <template_id> <project> <project_path>",
	Short: "Instantiate a template and start a session from it",
	Args:  cobra.ExactArgs(3),
	RunE:  runTemplateUse,
}

var templateCreateCmd = &cobra.Command{
	Use:   "create <name> <goal_template>",
	Short: "Create a new template",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateCreate,
}

var templateFromSessionCmd = &cobra.Command{
	Use:   "from-session <session_id> <name>",
	Short: "Capture a session as a new template",
	Args:  cobra.ExactArgs(2),
	RunE:  runTemplateFromSession,
}

// --- analytics ---
var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Read-only aggregation over session state",
}

var analyticsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summary counts by status and project",
	RunE:  runAnalyticsSummary,
}

var analyticsProjectCmd = &cobra.Command{
	Use:   "project <name>",
	Short: "Per-project stats",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyticsProject,
}

var analyticsTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Per-day activity histogram",
	RunE:  runAnalyticsTimeline,
}

var analyticsTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Tag-usage ranking",
	RunE:  runAnalyticsTags,
}

// --- metrics ---
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Expose engine counters for scraping",
}

var metricsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics over HTTP until interrupted",
	RunE:  runMetricsServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseDir, "base-dir", "", "engine base directory (default: ~/.sessionguard/data/session)")
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to a YAML/JSON config file")

	sessionCmd.AddCommand(sessionStartCmd, sessionResumeCmd, sessionStatusCmd, sessionCheckpointCmd,
		sessionEndCmd, sessionListCmd, sessionRenameCmd, sessionSearchCmd, sessionDeleteCmd,
		sessionExportCmd, sessionImportCmd, sessionCloneCmd)

	opCmd.AddCommand(opStatusCmd, opListCmd, opRetryCmd, opCancelCmd)
	contextCmd.AddCommand(contextSetCmd, contextGetCmd)
	githubCmd.AddCommand(githubConnectCmd, githubDisconnectCmd, githubInfoCmd)
	docCmd.AddCommand(docAddCmd, docRemoveCmd, docListCmd)
	tagsCmd.AddCommand(tagsAddCmd, tagsRemoveCmd)
	templateCmd.AddCommand(templateListCmd, templateUseCmd, templateCreateCmd, templateFromSessionCmd)
	analyticsCmd.AddCommand(analyticsSummaryCmd, analyticsProjectCmd, analyticsTimelineCmd, analyticsTagsCmd)
	metricsCmd.AddCommand(metricsServeCmd)

	rootCmd.AddCommand(sessionCmd, opCmd, contextCmd, githubCmd, docCmd, tagsCmd, templateCmd, analyticsCmd, metricsCmd)

	sessionStartCmd.Flags().String("project", "", "project name")
	sessionStartCmd.Flags().String("path", "", "project path")
	sessionStartCmd.Flags().String("goal", "", "session goal")
	sessionStartCmd.MarkFlagRequired("project")
	sessionStartCmd.MarkFlagRequired("path")
	sessionStartCmd.MarkFlagRequired("goal")

	opListCmd.Flags().Int("limit", 0, "maximum number of results (0 = unlimited)")

	sessionListCmd.Flags().Int("limit", 20, "maximum number of results")
	sessionSearchCmd.Flags().String("query", "", "substring match over name/goal/project")
	sessionSearchCmd.Flags().String("project", "", "exact project filter")
	sessionSearchCmd.Flags().String("status", "", "exact status filter")
	sessionSearchCmd.Flags().StringSlice("tags", nil, "tags that must all be present")
	sessionSearchCmd.Flags().Int("limit", 20, "maximum number of results")

	sessionExportCmd.Flags().Bool("include-checkpoints", false, "include checkpoints and WAL entries in the envelope")
	sessionImportCmd.Flags().String("new-session-id", "", "assign this id instead of the one in the envelope")
	sessionCloneCmd.Flags().String("goal", "", "override the cloned session's goal")

	docAddCmd.Flags().String("type", "file", "document type: file, url, text")
	docAddCmd.Flags().String("description", "", "document description")

	templateUseCmd.Flags().StringToString("vars", nil, "goal template placeholder substitutions")
	templateCreateCmd.Flags().String("project", "", "default project")
	templateCreateCmd.Flags().StringSlice("tags", nil, "default tags")
	templateCreateCmd.Flags().String("github", "", "default GitHub repo URL")

	analyticsTimelineCmd.Flags().Int("days", 30, "window size in days")

	metricsServeCmd.Flags().String("addr", "", "listen address (default from config: 127.0.0.1:9109)")
}
