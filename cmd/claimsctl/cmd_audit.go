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
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	auditPolicyNumber string
	auditStatus       string
	auditSince        string
	auditLimit        int
)

// =============================================================================
// AUDIT COMMAND
// =============================================================================

// runAuditCommand queries the claims service audit trail and prints the
// matching records, newest first.
//
// # Exit Codes
//
//   - 0: Query succeeded
//   - 2: Error
func runAuditCommand(cmd *cobra.Command, args []string) {
	query := url.Values{}
	if auditPolicyNumber != "" {
		query.Set("policy_number", auditPolicyNumber)
	}
	if auditStatus != "" {
		query.Set("status", auditStatus)
	}
	if auditSince != "" {
		query.Set("since", auditSince)
	}
	if auditLimit > 0 {
		query.Set("limit", strconv.Itoa(auditLimit))
	}

	endpoint := serverURL() + "/v1/audit"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(endpoint)
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

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
	} else {
		fmt.Println(pretty.String())
	}

	if resp.StatusCode != http.StatusOK {
		os.Exit(CLIExitError)
	}
	os.Exit(CLIExitSuccess)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the claims service audit trail",
	Long: `Fetches audit records from the claims service. Records are returned
newest first and contain only redacted text. The --since flag takes an
RFC 3339 timestamp, e.g. 2025-06-01T00:00:00Z.`,
	Run: runAuditCommand,
}

func init() {
	auditCmd.Flags().StringVar(&auditPolicyNumber, "policy", "", "Filter by policy number")
	auditCmd.Flags().StringVar(&auditStatus, "status", "", "Filter by final claim status")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "Only records at or after this RFC 3339 timestamp")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "Maximum records to return")
	rootCmd.AddCommand(auditCmd)
}
