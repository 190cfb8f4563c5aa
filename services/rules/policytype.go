// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"strings"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// typeRule is the per-policy-type document and red-flag table.
type typeRule struct {
	requiredDocuments []string
	redFlags          []redFlag
}

// redFlag is one keyword rule. Matching the keyword in the claim
// description adds review checks and documents, and can force the whole
// claim into manual review.
type redFlag struct {
	keyword      string
	addChecks    []string
	addDocuments []string
	forceReview  bool
}

var typeRules = map[datatypes.PolicyType]typeRule{
	datatypes.PolicyHealth: {
		requiredDocuments: []string{"itemized medical bill", "treatment summary"},
		redFlags: []redFlag{
			{keyword: "experimental", addChecks: []string{"medical_review"}, forceReview: true},
			{keyword: "cosmetic", addChecks: []string{"medical_review"}, addDocuments: []string{"medical necessity letter"}},
			{keyword: "pre-existing", addChecks: []string{"medical_review"}, addDocuments: []string{"prior medical records"}},
		},
	},
	datatypes.PolicyLife: {
		requiredDocuments: []string{"death certificate", "beneficiary identification"},
		redFlags: []redFlag{
			{keyword: "suicide", addChecks: []string{"legal_review"}, forceReview: true},
			{keyword: "accidental", addChecks: []string{"fraud_review"}, addDocuments: []string{"police or coroner report"}},
		},
	},
	datatypes.PolicyDental: {
		requiredDocuments: []string{"dental treatment plan"},
		redFlags: []redFlag{
			{keyword: "cosmetic", addChecks: []string{"medical_review"}, addDocuments: []string{"pre-treatment x-rays"}},
		},
	},
	datatypes.PolicyVision: {
		requiredDocuments: []string{"prescription or exam record"},
		redFlags: []redFlag{
			{keyword: "cosmetic", addChecks: []string{"medical_review"}},
		},
	},
	datatypes.PolicyDisability: {
		requiredDocuments: []string{"physician disability statement", "employer earnings statement"},
		redFlags: []redFlag{
			{keyword: "pre-existing", addChecks: []string{"medical_review"}, addDocuments: []string{"prior medical records"}},
			{keyword: "self-employed", addChecks: []string{"fraud_review"}, addDocuments: []string{"tax returns"}},
		},
	},
}

// typeRuleEffect is the merged outcome of the policy-type table for one
// claim.
type typeRuleEffect struct {
	requiredDocuments []string
	additionalChecks  []string
	forceReview       bool
	reviewReasons     []string
}

// applyPolicyTypeRules evaluates the lookup table against the request.
// Types without an entry (motor, home) have no type-specific requirements.
func applyPolicyTypeRules(request datatypes.ClaimRequest) typeRuleEffect {
	rule, ok := typeRules[request.PolicyType]
	if !ok {
		return typeRuleEffect{}
	}

	effect := typeRuleEffect{
		requiredDocuments: append([]string(nil), rule.requiredDocuments...),
	}

	description := strings.ToLower(request.Description)
	for _, flag := range rule.redFlags {
		if !strings.Contains(description, flag.keyword) {
			continue
		}
		effect.additionalChecks = append(effect.additionalChecks, flag.addChecks...)
		effect.requiredDocuments = append(effect.requiredDocuments, flag.addDocuments...)
		if flag.forceReview {
			effect.forceReview = true
			effect.reviewReasons = append(effect.reviewReasons,
				"description contains red-flag keyword "+flag.keyword)
		}
	}

	return effect
}
