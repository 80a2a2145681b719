// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "termination", req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.5, -1}})
	}))
	defer srv.Close()

	vec, err := NewOllama(srv.URL+"/", "nomic-embed-text").Embed(context.Background(), "termination")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1}, vec)
}

func TestOllamaEmbedErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		recoverable bool
	}{
		{name: "server error", status: http.StatusBadGateway, body: `{}`, recoverable: true},
		{name: "model missing", status: http.StatusNotFound, body: `{}`},
		{name: "empty embedding", status: http.StatusOK, body: `{"embedding":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOllama(srv.URL, "m").Embed(context.Background(), "x")
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeRetrieval))
			assert.Equal(t, tt.recoverable, errors.IsRecoverable(err))
		})
	}
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,0.75]}],
			"usage":{"prompt_tokens":1,"total_tokens":1}}`))
	}))
	defer srv.Close()

	vec, err := NewOpenAI(srv.URL+"/", "sk-test", "").Embed(context.Background(), "liability")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.75}, vec)
}
