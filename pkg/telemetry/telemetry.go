// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires logging, tracing and metrics for the legal review
// workflow.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Resource attribute keys describing the review deployment.
const (
	AttrModelDeployment   = "kairos_legal.model.deployment"
	AttrConfiguredVariant = "kairos_legal.review.configured_variant"
	AttrAgentEndpoint     = "kairos_legal.agents.endpoint"
)

const (
	spanBatchTimeout = time.Second
	metricInterval   = time.Minute
)

// ShutdownFunc flushes and stops the providers installed by Start.
type ShutdownFunc func(context.Context) error

// Config selects the exporter and describes the deployment that every review
// span and metric is attributed to.
type Config struct {
	ServiceName string
	Version     string

	// Exporter is one of "none", "stdout" or "otlp".
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	OTLPTimeout  time.Duration

	ModelDeployment string
	// Variant is the retrieval variant reviews run with unless a request
	// supplies inline references.
	Variant       string
	AgentEndpoint string
}

// Start installs global tracer and meter providers for cfg. With the "none"
// exporter the global no-op providers stay in place.
func Start(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.Exporter == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	spans, metrics, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res := Resource(cfg)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(spans, sdktrace.WithBatchTimeout(spanBatchTimeout)),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metrics, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		if err := errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx)); err != nil {
			return errors.New(errors.CodeInternal, "telemetry shutdown failed", err)
		}
		return nil
	}, nil
}

// Resource returns the OTel resource for cfg: service identity plus the
// model deployment and retrieval variant reviews run with.
func Resource(cfg Config) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}
	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	if cfg.ModelDeployment != "" {
		attrs = append(attrs, attribute.String(AttrModelDeployment, cfg.ModelDeployment))
	}
	if cfg.Variant != "" {
		attrs = append(attrs, attribute.String(AttrConfiguredVariant, cfg.Variant))
	}
	if cfg.AgentEndpoint != "" {
		attrs = append(attrs, attribute.String(AttrAgentEndpoint, cfg.AgentEndpoint))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newExporters(ctx context.Context, cfg Config) (sdktrace.SpanExporter, sdkmetric.Exporter, error) {
	switch cfg.Exporter {
	case "", ExporterStdout:
		spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, exporterError("stdout", err)
		}
		metrics, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, exporterError("stdout", err)
		}
		return spans, metrics, nil

	case ExporterOTLP:
		if cfg.OTLPEndpoint == "" {
			return nil, nil, errors.New(errors.CodeConfig, "otlp endpoint is required", nil).
				WithContext("key", "telemetry.otlp_endpoint")
		}
		traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
			metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		}
		if cfg.OTLPTimeout > 0 {
			traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(cfg.OTLPTimeout))
			metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(cfg.OTLPTimeout))
		}
		spans, err := otlptracegrpc.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, exporterError("otlp", err)
		}
		metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
		if err != nil {
			_ = spans.Shutdown(ctx)
			return nil, nil, exporterError("otlp", err)
		}
		return spans, metrics, nil

	default:
		return nil, nil, errors.New(errors.CodeConfig, "unknown telemetry exporter", nil).
			WithContext("key", "telemetry.exporter").
			WithContext("exporter", cfg.Exporter)
	}
}

func exporterError(exporter string, err error) error {
	return errors.New(errors.CodeConfig, "failed to create telemetry exporter", err).
		WithContext("exporter", exporter)
}
