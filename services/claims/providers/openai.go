// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

const decisionSystemPrompt = `You are an insurance claim validation assistant.
Decide whether the claim is covered using ONLY the numbered policy clauses provided.
Cite clauses by their exact clause_id; never invent a clause id and never rely on
general insurance knowledge. If the evidence is insufficient or ambiguous, set
status to "manual_review" rather than guessing.
Respond with a JSON object with fields: status (covered|not_covered|denied|manual_review),
explanation (string), clause_references (array of clause ids), confidence_score (0.0-1.0),
missing_evidence (array of strings, optional).`

// readAPIKey reads the OpenAI API key from the environment, falling back
// to the container secret mount.
func readAPIKey() (string, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key, nil
	}
	secretPath := "/run/secrets/openai_api_key"
	keyBytes, err := os.ReadFile(secretPath)
	if err != nil {
		slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	slog.Info("Read the OpenAI API key from container secrets")
	return strings.TrimSpace(string(keyBytes)), nil
}

// OpenAIEmbedder computes embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder builds an embedder from the environment.
// OPENAI_EMBEDDING_MODEL overrides the default model.
func NewOpenAIEmbedder() (*OpenAIEmbedder, error) {
	apiKey, err := readAPIKey()
	if err != nil {
		return nil, err
	}
	model := openai.EmbeddingModel(os.Getenv("OPENAI_EMBEDDING_MODEL"))
	if model == "" {
		model = openai.SmallEmbedding3
		slog.Warn("OPENAI_EMBEDDING_MODEL not set, defaulting to text-embedding-3-small")
	}
	slog.Info("Initializing OpenAI embedder", "model", model)
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}, nil
}

// Embed implements the Embedder interface.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		slog.Error("OpenAI embedding call failed", "error", err)
		return nil, fmt.Errorf("OpenAI embedding call failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("OpenAI returned no embedding data")
	}
	return resp.Data[0].Embedding, nil
}

// OpenAIGenerator produces claim decisions through the OpenAI chat API in
// JSON mode.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIGenerator builds a generator from the environment.
// OPENAI_MODEL overrides the default model.
func NewOpenAIGenerator() (*OpenAIGenerator, error) {
	apiKey, err := readAPIKey()
	if err != nil {
		return nil, err
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI decision generator", "model", model)
	return &OpenAIGenerator{client: openai.NewClient(apiKey), model: model}, nil
}

// generatedDecision is the JSON shape the model is instructed to return.
type generatedDecision struct {
	Status           string   `json:"status"`
	Explanation      string   `json:"explanation"`
	ClauseReferences []string `json:"clause_references"`
	ConfidenceScore  float64  `json:"confidence_score"`
	MissingEvidence  []string `json:"missing_evidence"`
}

// Generate implements the DecisionGenerator interface.
//
// Malformed or non-parseable model output is returned as
// ErrMalformedGeneration so the pipeline can treat it as a citation
// validation failure rather than a retryable service fault.
func (g *OpenAIGenerator) Generate(ctx context.Context, request datatypes.ClaimRequest, evidence datatypes.EvidenceSet) (*datatypes.ClaimDecision, error) {
	slog.Debug("Generating claim decision via OpenAI", "model", g.model, "clauses", len(evidence))

	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: decisionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildDecisionPrompt(request, evidence)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI decision call failed", "error", err)
		return nil, fmt.Errorf("OpenAI decision call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI returned no choices")
	}

	return parseGeneratedDecision(request, resp.Choices[0].Message.Content)
}

// buildDecisionPrompt renders the claim and its evidence for the model.
func buildDecisionPrompt(request datatypes.ClaimRequest, evidence datatypes.EvidenceSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim:\n  policy_type: %s\n  claim_amount: %.2f\n  description: %s\n\n",
		request.PolicyType, request.ClaimAmount, request.Description)
	b.WriteString("Policy clauses:\n")
	for i, clause := range evidence {
		fmt.Fprintf(&b, "%d. clause_id=%s section=%s\n   %s\n", i+1, clause.ClauseId, clause.Section, clause.Text)
	}
	return b.String()
}

// parseGeneratedDecision parses model output into a decision, reporting
// anything unparseable as ErrMalformedGeneration.
func parseGeneratedDecision(request datatypes.ClaimRequest, content string) (*datatypes.ClaimDecision, error) {
	var parsed generatedDecision
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		slog.Warn("Generator output is not valid JSON", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedGeneration, err)
	}

	status := datatypes.ClaimStatus(strings.ToLower(strings.TrimSpace(parsed.Status)))
	switch status {
	case datatypes.StatusCovered, datatypes.StatusNotCovered, datatypes.StatusDenied, datatypes.StatusManualReview:
	default:
		slog.Warn("Generator returned an unknown status", "status", parsed.Status)
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedGeneration, parsed.Status)
	}

	decision := &datatypes.ClaimDecision{
		RequestId:        request.Id,
		Status:           status,
		Explanation:      parsed.Explanation,
		ClauseReferences: parsed.ClauseReferences,
		ConfidenceScore:  parsed.ConfidenceScore,
		MissingEvidence:  parsed.MissingEvidence,
	}
	decision.EnsureDefaults()
	return decision, nil
}

var (
	_ Embedder          = (*OpenAIEmbedder)(nil)
	_ DecisionGenerator = (*OpenAIGenerator)(nil)
)
