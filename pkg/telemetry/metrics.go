// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// ReviewMetrics records review outcomes and remote agent lifecycle counts.
// A nil *ReviewMetrics is valid and records nothing.
type ReviewMetrics struct {
	reviews         metric.Int64Counter
	agentsCreated   metric.Int64Counter
	agentsReleased  metric.Int64Counter
	cleanupFailures metric.Int64Counter
	runDuration     metric.Float64Histogram
}

// NewReviewMetrics creates the review instruments on the global meter provider.
func NewReviewMetrics() (*ReviewMetrics, error) {
	meter := otel.Meter(TracerName)

	reviews, err := meter.Int64Counter(
		"kairos_legal.reviews.total",
		metric.WithDescription("Completed review workflows by status"),
	)
	if err != nil {
		return nil, err
	}
	agentsCreated, err := meter.Int64Counter(
		"kairos_legal.agents.created",
		metric.WithDescription("Remote agents created"),
	)
	if err != nil {
		return nil, err
	}
	agentsReleased, err := meter.Int64Counter(
		"kairos_legal.agents.released",
		metric.WithDescription("Remote agents deleted during cleanup"),
	)
	if err != nil {
		return nil, err
	}
	cleanupFailures, err := meter.Int64Counter(
		"kairos_legal.cleanup.failures",
		metric.WithDescription("Agent deletions that failed during cleanup by error code"),
	)
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram(
		"kairos_legal.run.duration",
		metric.WithDescription("Orchestrator run duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &ReviewMetrics{
		reviews:         reviews,
		agentsCreated:   agentsCreated,
		agentsReleased:  agentsReleased,
		cleanupFailures: cleanupFailures,
		runDuration:     runDuration,
	}, nil
}

// RecordReview counts a finished review with its outcome status and, on
// failure, the error code.
func (m *ReviewMetrics) RecordReview(ctx context.Context, variant, status string, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrReviewVariant, variant),
		attribute.String(AttrReviewStatus, status),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(AttrErrorCode, codeLabel(err)))
	}
	m.reviews.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAgentCreated counts one created remote agent.
func (m *ReviewMetrics) RecordAgentCreated(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.agentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentName, name)))
}

// RecordAgentReleased counts a cleanup deletion; err is nil on success.
func (m *ReviewMetrics) RecordAgentReleased(ctx context.Context, name string, err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.agentsReleased.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrAgentName, name)))
		return
	}
	m.cleanupFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentName, name),
		attribute.String(AttrErrorCode, codeLabel(err)),
	))
}

// RecordRunDuration records how long the orchestrator run took.
func (m *ReviewMetrics) RecordRunDuration(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(AttrRunStatus, status)))
}

func codeLabel(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN"
}
