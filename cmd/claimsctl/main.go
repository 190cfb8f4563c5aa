// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ClearlineAI/ClearlineClaims/pkg/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "claimsctl",
	Short: "A CLI to operate and inspect the Clearline claims validation service",
	Long: `claimsctl submits claims to a running claims service, queries its
audit trail, and exercises the embedded guardrail patterns locally
without a server (scan, redact, patterns).`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging to stderr")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := logging.LevelWarn
		if verbose {
			level = logging.LevelDebug
		}
		logger := logging.New(logging.Config{
			Level:   level,
			Service: "claimsctl",
			LogDir:  os.Getenv("CLAIMSCTL_LOG_DIR"),
		})
		slog.SetDefault(logger.Slog())
	}
}

// serverURL returns the claims service base URL for remote commands.
func serverURL() string {
	if url := os.Getenv("CLAIMS_SERVICE_URL"); url != "" {
		return url
	}
	return "http://localhost:12310"
}

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
