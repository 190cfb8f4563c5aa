// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse unmarshals a Weaviate GraphQL response into a typed
// structure.
//
// # Description
//
//	Weaviate returns untyped map[string]interface{} data. This round-trips
//	the Data field through JSON into the target type, which must mirror
//	the response shape with correct json tags.
//
// # Limitations
//
//   - Type mismatches produce zero values, not errors.
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// PolicyClauseQueryResponse represents the response from querying the
// PolicyClause class.
type PolicyClauseQueryResponse struct {
	Get struct {
		PolicyClause []PolicyClauseResult `json:"PolicyClause"`
	} `json:"Get"`
}

// PolicyClauseResult is a single clause from a query.
type PolicyClauseResult struct {
	ClauseId     string `json:"clause_id"`
	Text         string `json:"text"`
	Section      string `json:"section"`
	CoverageType string `json:"coverage_type"`
	Additional   struct {
		Certainty *float32 `json:"certainty"`
	} `json:"_additional"`
}
