// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

var tracer = otel.Tracer("clearline.claims.providers")

// clauseClassName is the Weaviate class holding indexed policy clauses.
const clauseClassName = "PolicyClause"

// WeaviateClauseRetriever implements ClauseRetriever against a Weaviate
// vector database.
//
// # Description
//
// Performs nearVector search over the PolicyClause class, filtered to the
// request's policy type so motor clauses never surface for a health claim.
// Certainty is mapped onto the clause relevance score.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying Weaviate client handles
// connection pooling.
type WeaviateClauseRetriever struct {
	client *weaviate.Client
}

// NewWeaviateClauseRetriever creates a retriever over a connected client.
func NewWeaviateClauseRetriever(client *weaviate.Client) *WeaviateClauseRetriever {
	return &WeaviateClauseRetriever{client: client}
}

// NewWeaviateClient builds a Weaviate client from the environment.
// WEAVIATE_HOST defaults to weaviate:8080, WEAVIATE_SCHEME to http.
func NewWeaviateClient() (*weaviate.Client, error) {
	host := os.Getenv("WEAVIATE_HOST")
	if host == "" {
		host = "weaviate:8080"
		slog.Warn("WEAVIATE_HOST not set, defaulting to weaviate:8080")
	}
	scheme := os.Getenv("WEAVIATE_SCHEME")
	if scheme == "" {
		scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return client, nil
}

// Retrieve implements the ClauseRetriever interface.
//
// # Inputs
//
//   - ctx: Context for cancellation and timeout.
//   - vector: The embedded claim description.
//   - policyType: Category filter; only clauses of this type are returned.
//   - limit: Maximum number of clauses.
//
// # Outputs
//
//   - datatypes.EvidenceSet: Ranked clauses, highest certainty first. An
//     empty set is a valid result, not an error.
//   - error: Non-nil if the search itself fails.
func (r *WeaviateClauseRetriever) Retrieve(ctx context.Context, vector []float32, policyType datatypes.PolicyType, limit int) (datatypes.EvidenceSet, error) {
	ctx, span := tracer.Start(ctx, "RetrieveClauses")
	defer span.End()

	slog.Debug("Searching policy clauses", "policyType", policyType, "limit", limit)

	typeFilter := filters.Where().
		WithPath([]string{"policy_type"}).
		WithOperator(filters.Equal).
		WithValueString(string(policyType))

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	// Certainty is requested instead of distance: it is always [0,1]
	// regardless of the distance metric.
	fields := []graphql.Field{
		{Name: "clause_id"},
		{Name: "text"},
		{Name: "section"},
		{Name: "coverage_type"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(clauseClassName).
		WithFields(fields...).
		WithWhere(typeFilter).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		slog.Error("Failed to search PolicyClause class", "error", err)
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.PolicyClauseQueryResponse](result)
	if err != nil {
		slog.Error("Failed to parse clause search results", "error", err)
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}

	evidence := make(datatypes.EvidenceSet, 0, len(parsed.Get.PolicyClause))
	for _, clause := range parsed.Get.PolicyClause {
		relevance := 0.0
		if clause.Additional.Certainty != nil {
			relevance = float64(*clause.Additional.Certainty)
		}
		evidence = append(evidence, datatypes.PolicyClause{
			ClauseId:     clause.ClauseId,
			Text:         clause.Text,
			Section:      clause.Section,
			CoverageType: clause.CoverageType,
			Relevance:    relevance,
		})
	}

	slog.Debug("Retrieved policy clauses", "count", len(evidence))
	return evidence, nil
}

var _ ClauseRetriever = (*WeaviateClauseRetriever)(nil)
