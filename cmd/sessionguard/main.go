// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command sessionguard is a CLI front end over the crash-safe session
// execution engine in internal/core: it starts, resumes, and inspects
// sessions, tracked operations, and their checkpoints from the shell.
package main

func main() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		exitErr(rootCmd, err)
	}
}
