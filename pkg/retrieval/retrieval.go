// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package retrieval provides reference text that is seeded into a review
// thread next to the document under review.
package retrieval

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// Separator joins documents returned by an index.
const Separator = "\n\n"

// Retriever returns reference text for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Document is a single search hit.
type Document struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float32 `json:"score"`
}

// Searcher queries a ranked reference index.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

// Embedder converts text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FileRetriever returns the full contents of a file regardless of the query.
// The file is read on every call so edits are picked up between reviews.
type FileRetriever struct {
	Path string
}

var _ Retriever = (*FileRetriever)(nil)

// NewFileRetriever returns a retriever backed by path.
func NewFileRetriever(path string) *FileRetriever {
	return &FileRetriever{Path: path}
}

// Retrieve implements Retriever.
func (r *FileRetriever) Retrieve(ctx context.Context, _ string) (string, error) {
	_, span := telemetry.Tracer().Start(ctx, "retrieval.file")
	defer span.End()

	data, err := os.ReadFile(r.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		code := errors.CodeRetrieval
		if os.IsNotExist(err) {
			code = errors.CodeNotFound
		}
		return "", errors.New(code, "failed to read references file", err).WithContext("path", r.Path)
	}
	span.SetAttributes(telemetry.RetrievalAttributes("file", 0, 1)...)
	return string(data), nil
}

// IndexRetriever joins the top K documents of a Searcher.
type IndexRetriever struct {
	searcher Searcher
	topK     int
}

var _ Retriever = (*IndexRetriever)(nil)

// NewIndexRetriever returns a retriever that asks searcher for at most topK
// documents per query.
func NewIndexRetriever(searcher Searcher, topK int) (*IndexRetriever, error) {
	if searcher == nil {
		return nil, errors.New(errors.CodeConfig, "index retriever requires a searcher", nil)
	}
	if topK <= 0 {
		return nil, errors.New(errors.CodeConfig, "top_k must be positive", nil).WithContext("top_k", topK)
	}
	return &IndexRetriever{searcher: searcher, topK: topK}, nil
}

// Retrieve implements Retriever. The first topK bodies are joined in index
// order. Blank bodies are kept.
func (r *IndexRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "retrieval.index")
	defer span.End()

	docs, err := r.searcher.Search(ctx, query, r.topK)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.CodeOf(err) != "" {
			return "", err
		}
		return "", errors.New(errors.CodeRetrieval, "reference search failed", err)
	}

	docs = docs[:min(len(docs), r.topK)]
	bodies := make([]string, len(docs))
	for i, doc := range docs {
		bodies[i] = doc.Content
	}
	span.SetAttributes(telemetry.RetrievalAttributes("index", r.topK, len(bodies))...)
	return strings.Join(bodies, Separator), nil
}

// Static returns a fixed text. The workflow uses it for references supplied
// with the request.
type Static string

// Retrieve implements Retriever.
func (s Static) Retrieve(context.Context, string) (string, error) {
	return string(s), nil
}
