// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

const sidecarTimeout = 30 * time.Second

// SidecarEmbedder computes embeddings through a local embedding sidecar,
// for deployments that keep claim text off third-party APIs entirely.
type SidecarEmbedder struct {
	baseURL string
	client  *http.Client
}

// NewSidecarEmbedder builds an embedder against EMBEDDING_SERVICE_URL.
func NewSidecarEmbedder() (*SidecarEmbedder, error) {
	baseURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("EMBEDDING_SERVICE_URL environment variable not set")
	}
	slog.Info("Initializing sidecar embedder", "url", baseURL)
	return &SidecarEmbedder{
		baseURL: baseURL,
		client:  &http.Client{Timeout: sidecarTimeout},
	}, nil
}

// Embed implements the Embedder interface.
func (e *SidecarEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding sidecar call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding sidecar returned %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Vector []float32 `json:"vector"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(parsed.Vector) == 0 {
		return nil, fmt.Errorf("embedding sidecar returned an empty vector")
	}
	return parsed.Vector, nil
}

// HTTPDocumentExtractor fetches extracted document text from the document
// extraction sidecar (OCR and entity extraction run there).
type HTTPDocumentExtractor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDocumentExtractor builds an extractor against
// EXTRACTION_SERVICE_URL.
func NewHTTPDocumentExtractor() (*HTTPDocumentExtractor, error) {
	baseURL := os.Getenv("EXTRACTION_SERVICE_URL")
	if baseURL == "" {
		return nil, fmt.Errorf("EXTRACTION_SERVICE_URL environment variable not set")
	}
	slog.Info("Initializing document extractor", "url", baseURL)
	return &HTTPDocumentExtractor{
		baseURL: baseURL,
		client:  &http.Client{Timeout: sidecarTimeout},
	}, nil
}

// Extract implements the DocumentExtractor interface.
//
// The extraction data pointer is nil when the sidecar found no structured
// fields; the text alone still feeds the document-consistency check.
func (x *HTTPDocumentExtractor) Extract(ctx context.Context, documentId string) (*datatypes.SupportingDocument, *datatypes.ExtractionData, error) {
	endpoint := x.baseURL + "/documents/" + url.PathEscape(documentId)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build extraction request: %w", err)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction sidecar call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, nil, fmt.Errorf("extraction sidecar returned %d: %s", resp.StatusCode, payload)
	}

	var parsed struct {
		Text         string  `json:"text"`
		PolicyNumber string  `json:"policy_number"`
		Amount       float64 `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, nil, fmt.Errorf("decode extraction response: %w", err)
	}

	doc := &datatypes.SupportingDocument{DocumentId: documentId, Text: parsed.Text}
	var extraction *datatypes.ExtractionData
	if parsed.PolicyNumber != "" || parsed.Amount > 0 {
		extraction = &datatypes.ExtractionData{
			PolicyNumber: parsed.PolicyNumber,
			Amount:       parsed.Amount,
		}
	}
	return doc, extraction, nil
}

var (
	_ Embedder          = (*SidecarEmbedder)(nil)
	_ DocumentExtractor = (*HTTPDocumentExtractor)(nil)
)
