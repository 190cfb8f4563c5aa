// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ClearlineAI/ClearlineClaims/services/redaction"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var redactJSON bool

// RedactResult is the JSON shape of "claimsctl redact".
type RedactResult struct {
	Redacted string         `json:"redacted"`
	Detected map[string]int `json:"detected,omitempty"`
}

// =============================================================================
// REDACT COMMAND
// =============================================================================

// runRedactCommand masks sensitive data in a string using the embedded
// sensitive-data patterns, exactly as the service does on every outbound
// explanation.
//
// # Exit Codes
//
//   - 0: Nothing sensitive found
//   - 1: Sensitive data found and masked
//   - 2: Error
func runRedactCommand(cmd *cobra.Command, args []string) {
	input := args[0]

	masker, err := redaction.NewMasker()
	if err != nil {
		OutputError(redactJSON, "Failed to load the sensitive-data patterns", err)
		os.Exit(CLIExitError)
	}

	detected := masker.DetectTypes(input)
	redacted := masker.Redact(input)

	if redactJSON {
		result := RedactResult{
			Redacted: redacted,
			Detected: detected,
		}
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		fmt.Println(redacted)
		for kind, count := range detected {
			fmt.Fprintf(os.Stderr, "masked %s x%d\n", kind, count)
		}
	}

	if len(detected) > 0 {
		os.Exit(CLIExitFindings)
	}
	os.Exit(CLIExitSuccess)
}

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Mask sensitive data in a string",
	Long: `Applies the service's outbound sensitive-data masking to a string.
The redacted text goes to stdout; a summary of what was masked goes to
stderr so the output stays pipeable.`,
	Args: cobra.ExactArgs(1),
	Run:  runRedactCommand,
}

func init() {
	redactCmd.Flags().BoolVar(&redactJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(redactCmd)
}
