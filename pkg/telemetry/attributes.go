// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by every review span.
const TracerName = "kairos-legal"

// Attribute keys for review spans and metrics.
const (
	AttrReviewID      = "kairos_legal.review.id"
	AttrReviewVariant = "kairos_legal.review.variant"
	AttrReviewStatus  = "kairos_legal.review.status"

	AttrAgentID    = "kairos_legal.agent.id"
	AttrAgentName  = "kairos_legal.agent.name"
	AttrAgentModel = "kairos_legal.agent.model"
	AttrToolsCount = "kairos_legal.agent.tools_count"

	AttrThreadID  = "kairos_legal.thread.id"
	AttrRunID     = "kairos_legal.run.id"
	AttrRunStatus = "kairos_legal.run.status"

	AttrRetrievalSource = "kairos_legal.retrieval.source"
	AttrRetrievalTopK   = "kairos_legal.retrieval.top_k"
	AttrRetrievalHits   = "kairos_legal.retrieval.hits"

	AttrErrorCode = "error.code"
)

// Tracer returns the tracer for review spans.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// AgentAttributes returns attributes for agent lifecycle spans.
func AgentAttributes(id, name, model string, toolsCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentName, name),
	}
	if id != "" {
		attrs = append(attrs, attribute.String(AttrAgentID, id))
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrAgentModel, model))
	}
	if toolsCount > 0 {
		attrs = append(attrs, attribute.Int(AttrToolsCount, toolsCount))
	}
	return attrs
}

// RunAttributes returns attributes for run driver spans.
func RunAttributes(threadID, runID, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrThreadID, threadID),
	}
	if runID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, runID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrRunStatus, status))
	}
	return attrs
}

// RetrievalAttributes returns attributes for retrieval spans.
func RetrievalAttributes(source string, topK, hits int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrRetrievalSource, source),
		attribute.Int(AttrRetrievalHits, hits),
	}
	if topK > 0 {
		attrs = append(attrs, attribute.Int(AttrRetrievalTopK, topK))
	}
	return attrs
}
