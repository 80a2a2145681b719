// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package embed turns reference text and search queries into vectors.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama implements retrieval.Embedder using a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ retrieval.Embedder = (*Ollama)(nil)

// NewOllama creates an Ollama embedder.
func NewOllama(baseURL, model string) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed implements retrieval.Embedder.
func (e *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to marshal embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeRetrieval, "ollama embedding call failed", err).WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeRetrieval, fmt.Sprintf("ollama returned status %d", resp.StatusCode), nil).
			WithContext("model", e.model).
			WithRecoverable(resp.StatusCode >= 500)
	}

	var out ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.New(errors.CodeRetrieval, "failed to decode embedding response", err)
	}
	if len(out.Embedding) == 0 {
		return nil, errors.New(errors.CodeRetrieval, "ollama returned an empty embedding", nil).
			WithContext("model", e.model)
	}
	return toFloat32(out.Embedding), nil
}

func toFloat32(in []float64) []float32 {
	vec := make([]float32, len(in))
	for i, v := range in {
		vec[i] = float32(v)
	}
	return vec
}
