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

	"github.com/ClearlineAI/ClearlineClaims/services/threatscan"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var scanJSON bool

// ScanResult is the JSON shape of "claimsctl scan".
type ScanResult struct {
	Input      string   `json:"input"`
	Clean      bool     `json:"clean"`
	Threats    []string `json:"threats,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// =============================================================================
// SCAN COMMAND
// =============================================================================

// runScanCommand tests a string against the embedded threat patterns,
// the same screening a claim description gets before any model call.
//
// # Exit Codes
//
//   - 0: No threats found
//   - 1: Threats found
//   - 2: Error
func runScanCommand(cmd *cobra.Command, args []string) {
	input := args[0]

	scanner, err := threatscan.NewScanner()
	if err != nil {
		OutputError(scanJSON, "Failed to load the threat patterns", err)
		os.Exit(CLIExitError)
	}

	clean, threats := scanner.Scan(input)

	if scanJSON {
		result := ScanResult{
			Input:      input,
			Clean:      clean,
			Threats:    threats,
			Categories: scanner.Categories(threats),
		}
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		if clean {
			fmt.Println("No threats found.")
		} else {
			fmt.Println("Threat findings:")
			for _, threat := range threats {
				fmt.Printf("  - %s\n", threat)
			}
			fmt.Printf("Categories: %v\n", scanner.Categories(threats))
		}
	}

	if !clean {
		os.Exit(CLIExitFindings)
	}
	os.Exit(CLIExitSuccess)
}

var scanCmd = &cobra.Command{
	Use:   "scan [text]",
	Short: "Screen a string against the embedded threat patterns",
	Long: `Runs the same threat screening the service applies to every claim
description before it reaches the language model. Useful for checking
why a claim was rejected, or for testing new pattern candidates.`,
	Args: cobra.ExactArgs(1),
	Run:  runScanCommand,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(scanCmd)
}
