// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/handlers"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	validatePolicyNumber string
	validatePolicyType   string
	validateAmount       float64
	validateCaller       string
	validateDocumentIds  []string
	validateCompact      bool
)

// =============================================================================
// VALIDATE COMMAND
// =============================================================================

// runValidateCommand submits a claim to a running claims service and
// prints the resulting decision as JSON.
//
// # Exit Codes
//
//   - 0: Decision returned (any status; escalation is a valid outcome)
//   - 1: Request rejected by security screening
//   - 2: Error
func runValidateCommand(cmd *cobra.Command, args []string) {
	description := strings.Join(args, " ")

	body := handlers.ValidateClaimRequest{
		Request: datatypes.ClaimRequest{
			CallerId:     validateCaller,
			PolicyNumber: validatePolicyNumber,
			PolicyType:   datatypes.PolicyType(validatePolicyType),
			ClaimAmount:  validateAmount,
			Description:  description,
		},
		SupportingDocumentIds: validateDocumentIds,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		OutputError(true, "Failed to encode the claim", err)
		os.Exit(CLIExitError)
	}

	client := &http.Client{Timeout: 120 * time.Second}
	resp, err := client.Post(serverURL()+"/v1/claims/validate", "application/json", bytes.NewReader(payload))
	if err != nil {
		OutputError(true, "Failed to reach the claims service", err)
		os.Exit(CLIExitError)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		OutputError(true, "Failed to read the service response", err)
		os.Exit(CLIExitError)
	}

	// The service replies with JSON on every status; pretty-print it
	// rather than re-interpreting the decision client-side.
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
	} else if validateCompact {
		fmt.Println(string(raw))
	} else {
		fmt.Println(pretty.String())
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		os.Exit(CLIExitSuccess)
	case resp.StatusCode == http.StatusBadRequest:
		os.Exit(CLIExitFindings)
	default:
		os.Exit(CLIExitError)
	}
}

var validateCmd = &cobra.Command{
	Use:   "validate [description...]",
	Short: "Submit a claim to the claims service for validation",
	Long: `Sends a claim to the claims service validation endpoint and prints
the decision. The claim description is the joined positional arguments;
policy details come from flags. Set CLAIMS_SERVICE_URL to target a
non-local deployment.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runValidateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&validatePolicyNumber, "policy", "", "Policy number the claim is filed against")
	validateCmd.Flags().StringVar(&validatePolicyType, "type", "home", "Policy type (motor, home, health, life, dental, vision, disability)")
	validateCmd.Flags().Float64Var(&validateAmount, "amount", 0, "Claim amount in whole currency units")
	validateCmd.Flags().StringVar(&validateCaller, "caller", "", "Caller identity for rate limiting and audit")
	validateCmd.Flags().StringSliceVar(&validateDocumentIds, "docs", nil, "Supporting document ids")
	validateCmd.Flags().BoolVar(&validateCompact, "compact", false, "Print the raw response without indentation")
	validateCmd.MarkFlagRequired("policy")
	rootCmd.AddCommand(validateCmd)
}
