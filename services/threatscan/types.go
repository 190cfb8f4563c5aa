// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package threatscan

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/ClearlineAI/ClearlineClaims/services/threatscan/enforcement"
	"gopkg.in/yaml.v3"
)

// ThreatPatternFile mirrors the structure of the embedded threat_patterns.yaml.
type ThreatPatternFile struct {
	Families []Family `yaml:"families"`
}

// Family groups related threat patterns under one attack category.
//
// Families are evaluated highest priority first so that the most severe
// category appears first in the reported threat list.
type Family struct {
	Name             string           `yaml:"name"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

// Pattern is a single detection rule within a family.
//
// The Description is the caller-visible threat text. It names the category
// and the canonical phrase; it must never carry the matched input, since the
// whole point of this stage is not to echo attack payloads back out.
type Pattern struct {
	Id              string         `yaml:"id"`
	Description     string         `yaml:"description"`
	Regex           string         `yaml:"regex"`
	compiledPattern *regexp.Regexp `yaml:"-"`
}

// CompileRegexes compiles every pattern in every family.
//
// Returns an error naming the first regex that fails to compile. Compilation
// happens once at engine construction so Scan itself never pays the cost.
func (f *ThreatPatternFile) CompileRegexes() error {
	for i := range f.Families {
		for j := range f.Families[i].Patterns {
			pattern := &f.Families[i].Patterns[j]
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			f.Families[i].CompiledPatterns = append(f.Families[i].CompiledPatterns, re)
			pattern.compiledPattern = re
		}
	}
	return nil
}

// SortByPriority orders families from highest to lowest priority.
func (f *ThreatPatternFile) SortByPriority() {
	sort.Slice(f.Families, func(i, j int) bool {
		return f.Families[i].Priority > f.Families[j].Priority
	})
}

// loadPatternFile parses, compiles, and sorts the embedded pattern file.
func loadPatternFile() (*ThreatPatternFile, error) {
	var file ThreatPatternFile
	if err := yaml.Unmarshal(enforcement.ThreatPatterns, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded threat pattern file: %w", err)
	}
	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a threat regex: %w", err)
	}
	file.SortByPriority()
	return &file, nil
}
