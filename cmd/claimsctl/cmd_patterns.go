// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	redactenf "github.com/ClearlineAI/ClearlineClaims/services/redaction/enforcement"
	threatenf "github.com/ClearlineAI/ClearlineClaims/services/threatscan/enforcement"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	patternsVerifyJSON bool
	patternsDumpKind   string
)

// PatternVerifyResult is the JSON shape of "claimsctl patterns verify".
type PatternVerifyResult struct {
	Valid   bool                   `json:"valid"`
	Files   []PatternFileIntegrity `json:"files"`
	Version string                 `json:"version"`
}

// PatternFileIntegrity is one embedded pattern file's checksum.
type PatternFileIntegrity struct {
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	ByteSize int    `json:"byte_size"`
}

// =============================================================================
// PATTERNS VERIFY COMMAND
// =============================================================================

// verifyPatterns is the CLI handler for "claimsctl patterns verify".
//
// It calculates SHA256 checksums over the raw bytes of both embedded
// guardrail pattern files (threat and sensitive-data). This lets
// operators cryptographically verify that the binary they are running
// carries the expected guardrail rules and that the patterns were not
// swapped or tampered with during the build.
//
// # Exit Codes
//
//   - 0: Patterns verified successfully
//   - 2: Error (should not happen for embedded patterns)
func verifyPatterns(cmd *cobra.Command, args []string) {
	files := []PatternFileIntegrity{
		checksumOf("threat_patterns.yaml", threatenf.ThreatPatterns),
		checksumOf("sensitive_patterns.yaml", redactenf.SensitivePatterns),
	}

	if patternsVerifyJSON {
		result := PatternVerifyResult{
			Valid:   true,
			Files:   files,
			Version: "1.0",
		}
		if err := OutputJSON(result, false); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Println("--- Embedded Pattern Verification ---")
	for _, f := range files {
		fmt.Printf("%s: %d bytes\n", f.Name, f.ByteSize)
		fmt.Printf("  SHA256 Fingerprint: %s\n", f.Hash)
	}
	fmt.Println("-------------------------------------")
}

func checksumOf(name string, data []byte) PatternFileIntegrity {
	hash := sha256.Sum256(data)
	return PatternFileIntegrity{
		Name:     name,
		Hash:     fmt.Sprintf("sha256:%x", hash),
		ByteSize: len(data),
	}
}

// =============================================================================
// PATTERNS DUMP COMMAND
// =============================================================================

// dumpPatterns outputs an embedded pattern file. The --kind flag picks
// which one: "threat" (default) or "sensitive".
func dumpPatterns(cmd *cobra.Command, args []string) {
	switch patternsDumpKind {
	case "threat", "":
		fmt.Println(string(threatenf.ThreatPatterns))
	case "sensitive":
		fmt.Println(string(redactenf.SensitivePatterns))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown pattern kind %q (want threat or sensitive)\n", patternsDumpKind)
		os.Exit(CLIExitError)
	}
}

// =============================================================================
// COMMAND REGISTRATION
// =============================================================================

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the embedded guardrail pattern files",
}

var patternsVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Print SHA256 checksums of the embedded pattern files",
	Run:   verifyPatterns,
}

var patternsDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print an embedded pattern file",
	Run:   dumpPatterns,
}

func init() {
	patternsVerifyCmd.Flags().BoolVar(&patternsVerifyJSON, "json", false, "Output as JSON")
	patternsDumpCmd.Flags().StringVar(&patternsDumpKind, "kind", "threat", "Pattern file to dump (threat or sensitive)")

	patternsCmd.AddCommand(patternsVerifyCmd)
	patternsCmd.AddCommand(patternsDumpCmd)
	rootCmd.AddCommand(patternsCmd)
}
