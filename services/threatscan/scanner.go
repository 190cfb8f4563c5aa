// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package threatscan detects adversarial input before it can reach any
// external service.
//
// The scanner runs a fixed library of pattern families (prompt manipulation,
// role reassignment, code and SQL injection payloads) plus shape-based abuse
// checks over raw claim text. It is a total, side-effect-free function: no
// network calls, no allocation of shared state, identical output for
// identical input. That determinism is what lets the orchestrator run it
// first and reject hostile requests without ever invoking the embedding or
// generation services.
package threatscan

import (
	"fmt"
	"unicode"
)

// Shape-based abuse limits. These catch denial-of-service shaped input that
// no phrase pattern would flag.
const (
	// maxInputLength is the longest description the pipeline accepts.
	maxInputLength = 10000

	// maxNonAlnumRatio is the highest tolerated fraction of characters that
	// are neither letters, digits, nor whitespace.
	maxNonAlnumRatio = 0.30

	// maxCharRun is the longest tolerated run of a single repeated character.
	maxCharRun = 20
)

// Scanner holds the compiled threat pattern library.
//
// Construct once at process start via NewScanner and share freely; Scan does
// not mutate any state, so a single Scanner is safe for concurrent use.
type Scanner struct {
	Families []Family
}

// NewScanner initializes a Scanner from the embedded pattern file.
//
// It unmarshals the YAML baked into the binary, compiles every regex, and
// sorts families by priority. Returns an error if the embedded YAML is
// malformed or contains an invalid regex; both indicate a broken build, so
// callers treat a failure here as fatal.
func NewScanner() (*Scanner, error) {
	file, err := loadPatternFile()
	if err != nil {
		return nil, err
	}
	return &Scanner{Families: file.Families}, nil
}

// Scan checks text against every pattern family and the shape limits.
//
// Returns isClean=false iff at least one threat was found. Each threat
// string names the family and the pattern description, never the matched
// input, so the result is safe to return to callers and to log.
//
// Scan is a pure function (repeated calls with identical input yield an
// identical result) and runs entirely in memory.
func (s *Scanner) Scan(text string) (isClean bool, threats []string) {
	for _, family := range s.Families {
		for i, re := range family.CompiledPatterns {
			if re.MatchString(text) {
				threats = append(threats, fmt.Sprintf("%s: %s",
					family.Name, family.Patterns[i].Description))
			}
		}
	}
	threats = append(threats, scanShape(text)...)
	return len(threats) == 0, threats
}

// Categories returns the distinct family names that matched, preserving
// priority order. The orchestrator reports these to the caller instead of
// the full threat strings when building a rejection.
func (s *Scanner) Categories(threats []string) []string {
	seen := make(map[string]bool, len(s.Families))
	var categories []string
	for _, family := range s.Families {
		for _, threat := range threats {
			if !seen[family.Name] && len(threat) > len(family.Name) &&
				threat[:len(family.Name)] == family.Name {
				seen[family.Name] = true
				categories = append(categories, family.Name)
			}
		}
	}
	for _, threat := range threats {
		if threat == shapeLength || threat == shapeRatio || threat == shapeRun {
			if !seen["abusive_shape"] {
				seen["abusive_shape"] = true
				categories = append(categories, "abusive_shape")
			}
		}
	}
	return categories
}

// Threat strings for the shape checks. Constant so Categories can recognize
// them without string parsing.
const (
	shapeLength = "abusive_shape: input exceeds maximum length"
	shapeRatio  = "abusive_shape: excessive non-alphanumeric content"
	shapeRun    = "abusive_shape: single character repeated excessively"
)

// scanShape applies the three shape-based abuse checks.
func scanShape(text string) []string {
	var threats []string

	runes := []rune(text)
	if len(runes) > maxInputLength {
		threats = append(threats, shapeLength)
	}

	if len(runes) > 0 {
		nonAlnum := 0
		for _, r := range runes {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
				nonAlnum++
			}
		}
		if float64(nonAlnum)/float64(len(runes)) > maxNonAlnumRatio {
			threats = append(threats, shapeRatio)
		}
	}

	run := 0
	var prev rune
	for i, r := range runes {
		if i > 0 && r == prev {
			run++
			if run > maxCharRun {
				threats = append(threats, shapeRun)
				break
			}
		} else {
			run = 1
		}
		prev = r
	}

	return threats
}
