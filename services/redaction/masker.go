// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package redaction detects and masks personally identifying and health
// information in claim text.
//
// The masker is used twice per request: once on the inbound description to
// detect and log category counts (the text itself stays intact because the
// generator needs it), and once on the outbound explanation to redact
// sensitive values before they leave the system. Masks are structure
// preserving (area code kept, email domain kept, card last-four kept) so
// that redacted output remains debuggable, and Redact is idempotent: a
// mask never re-matches its own pattern.
//
// Detected values are never logged, only counts and category names.
package redaction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ClearlineAI/ClearlineClaims/services/redaction/enforcement"
	"gopkg.in/yaml.v3"
)

// MaskStrategy selects how a matched value is replaced.
type MaskStrategy string

const (
	// MaskFull replaces every digit in the match with '*', preserving
	// separators ("123-45-6789" becomes "***-**-****").
	MaskFull MaskStrategy = "full"

	// MaskCardLastFour keeps the final four card digits
	// ("4111 1111 1111 1111" becomes "****-****-****-1111").
	MaskCardLastFour MaskStrategy = "card_last_four"

	// MaskPhoneKeepArea keeps the area code
	// ("555-123-4567" becomes "555-***-****").
	MaskPhoneKeepArea MaskStrategy = "phone_keep_area"

	// MaskEmailKeepDomain keeps the domain
	// ("jane@example.com" becomes "****@example.com").
	MaskEmailKeepDomain MaskStrategy = "email_keep_domain"

	// MaskPhrase keeps the label up to the colon and redacts the payload
	// ("diagnosis: type 2 diabetes" becomes "diagnosis: [REDACTED]").
	MaskPhrase MaskStrategy = "phrase"
)

// SensitivePatternFile mirrors the structure of sensitive_patterns.yaml.
type SensitivePatternFile struct {
	Categories []Category `yaml:"categories"`
}

// Category groups related detection patterns under one data type.
type Category struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Mask             MaskStrategy     `yaml:"mask"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

// Pattern is a single detection rule within a category.
type Pattern struct {
	Id          string `yaml:"id"`
	Description string `yaml:"description"`
	Regex       string `yaml:"regex"`
}

// Masker holds the compiled sensitive-data pattern library.
//
// Construct once via NewMasker and share freely; both methods are pure over
// their input, so a single Masker is safe for concurrent use.
type Masker struct {
	Categories []Category
}

// NewMasker initializes a Masker from the embedded pattern file.
//
// Returns an error if the embedded YAML is malformed, contains an invalid
// regex, or names an unknown mask strategy. All three indicate a broken
// build, so callers treat a failure here as fatal.
func NewMasker() (*Masker, error) {
	var file SensitivePatternFile
	if err := yaml.Unmarshal(enforcement.SensitivePatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded sensitive pattern file: %w", err)
	}
	for i := range file.Categories {
		category := &file.Categories[i]
		switch category.Mask {
		case MaskFull, MaskCardLastFour, MaskPhoneKeepArea, MaskEmailKeepDomain, MaskPhrase:
		default:
			return nil, fmt.Errorf("unknown mask strategy %q for category %s", category.Mask, category.Name)
		}
		for _, pattern := range category.Patterns {
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return nil, fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			category.CompiledPatterns = append(category.CompiledPatterns, re)
		}
	}
	sort.Slice(file.Categories, func(i, j int) bool {
		return file.Categories[i].Priority > file.Categories[j].Priority
	})
	return &Masker{Categories: file.Categories}, nil
}

// DetectTypes scans text and returns a count of matches per category name.
//
// Categories with no matches are omitted, so an empty map means the text is
// clean. The matched values themselves are never returned; callers log the
// counts and category names only.
func (m *Masker) DetectTypes(text string) map[string]int {
	counts := make(map[string]int)
	for _, category := range m.Categories {
		for _, re := range category.CompiledPatterns {
			if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
				counts[category.Name] += n
			}
		}
	}
	return counts
}

// Redact replaces every sensitive match in text with its category's mask.
//
// Categories are applied highest priority first so long digit sequences
// (cards, phones) are consumed before shorter patterns can partially match
// them. Redact is idempotent: Redact(Redact(x)) == Redact(x) for all x,
// because no mask output re-matches any pattern (or, for phrase masks,
// re-masks to the identical string).
func (m *Masker) Redact(text string) string {
	for _, category := range m.Categories {
		strategy := category.Mask
		for _, re := range category.CompiledPatterns {
			text = re.ReplaceAllStringFunc(text, func(match string) string {
				return applyMask(strategy, match)
			})
		}
	}
	return text
}

// applyMask produces the replacement for one matched value.
func applyMask(strategy MaskStrategy, match string) string {
	switch strategy {
	case MaskCardLastFour:
		digits := digitsOf(match)
		if len(digits) < 4 {
			return "****-****-****-****"
		}
		return "****-****-****-" + digits[len(digits)-4:]
	case MaskPhoneKeepArea:
		digits := digitsOf(match)
		if len(digits) == 11 && digits[0] == '1' {
			digits = digits[1:]
		}
		if len(digits) < 10 {
			return "***-***-****"
		}
		return digits[:3] + "-***-****"
	case MaskEmailKeepDomain:
		if at := strings.LastIndex(match, "@"); at >= 0 {
			return "****@" + match[at+1:]
		}
		return "****"
	case MaskPhrase:
		if colon := strings.IndexAny(match, ":#"); colon >= 0 {
			return strings.TrimRight(match[:colon+1], " ") + " [REDACTED]"
		}
		return "[REDACTED]"
	default: // MaskFull
		return starDigits(match)
	}
}

// digitsOf strips every non-digit character from s.
func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// starDigits replaces every digit in s with '*', preserving separators.
func starDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune('*')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
