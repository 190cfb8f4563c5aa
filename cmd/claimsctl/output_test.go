// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strings"
	"testing"

	redactenf "github.com/ClearlineAI/ClearlineClaims/services/redaction/enforcement"
	threatenf "github.com/ClearlineAI/ClearlineClaims/services/threatscan/enforcement"
)

func TestExitCodes(t *testing.T) {
	if CLIExitSuccess != 0 {
		t.Errorf("CLIExitSuccess = %d, want 0", CLIExitSuccess)
	}
	if CLIExitFindings != 1 {
		t.Errorf("CLIExitFindings = %d, want 1", CLIExitFindings)
	}
	if CLIExitError != 2 {
		t.Errorf("CLIExitError = %d, want 2", CLIExitError)
	}
}

func TestChecksumOf(t *testing.T) {
	result := checksumOf("threat_patterns.yaml", threatenf.ThreatPatterns)

	if result.Name != "threat_patterns.yaml" {
		t.Errorf("Name = %s, want threat_patterns.yaml", result.Name)
	}
	if !strings.HasPrefix(result.Hash, "sha256:") {
		t.Errorf("Hash = %s, want sha256: prefix", result.Hash)
	}
	if result.ByteSize != len(threatenf.ThreatPatterns) {
		t.Errorf("ByteSize = %d, want %d", result.ByteSize, len(threatenf.ThreatPatterns))
	}
}

func TestChecksumsAreStable(t *testing.T) {
	a := checksumOf("sensitive_patterns.yaml", redactenf.SensitivePatterns)
	b := checksumOf("sensitive_patterns.yaml", redactenf.SensitivePatterns)

	if a.Hash != b.Hash {
		t.Errorf("checksum not stable: %s vs %s", a.Hash, b.Hash)
	}
}

func TestServerURLDefault(t *testing.T) {
	t.Setenv("CLAIMS_SERVICE_URL", "")
	if got := serverURL(); got != "http://localhost:12310" {
		t.Errorf("serverURL() = %s, want http://localhost:12310", got)
	}

	t.Setenv("CLAIMS_SERVICE_URL", "http://claims.internal:9000")
	if got := serverURL(); got != "http://claims.internal:9000" {
		t.Errorf("serverURL() = %s, want http://claims.internal:9000", got)
	}
}
