// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package embed

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAI implements retrieval.Embedder against an OpenAI-compatible
// embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

var _ retrieval.Embedder = (*OpenAI)(nil)

// NewOpenAI creates an embedder. An empty baseURL uses the client default.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	opts := []option.RequestOption{}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Embed implements retrieval.Embedder.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, errors.New(errors.CodeRetrieval, "openai embedding call failed", err).
			WithContext("model", e.model)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New(errors.CodeRetrieval, "embedding response has no data", nil).
			WithContext("model", e.model)
	}
	return toFloat32(resp.Data[0].Embedding), nil
}
