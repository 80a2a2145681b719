// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// RunFailure reports a run that reached a terminal status other than
// completed.
type RunFailure struct {
	RunID     string
	Status    agentservice.RunStatus
	LastError *agentservice.RunError
}

func (f *RunFailure) Error() string {
	msg := fmt.Sprintf("run %s ended with status %s", f.RunID, f.Status)
	if f.LastError != nil {
		msg += fmt.Sprintf(": %s: %s", f.LastError.Code, f.LastError.Message)
	}
	return msg
}

// Unwrap exposes the failure as a RUN_FAILURE error.
func (f *RunFailure) Unwrap() error {
	e := errors.New(errors.CodeRunFailure, "run did not complete", nil).
		WithContext("run_id", f.RunID).
		WithContext("status", string(f.Status))
	if f.LastError != nil {
		e = e.WithContext("last_error_code", f.LastError.Code).
			WithContext("last_error", f.LastError.Message)
	}
	return e
}

// Driver runs an agent on a thread to a terminal status.
type Driver struct {
	svc     agentservice.Service
	timeout time.Duration
	logger  *slog.Logger
	metrics *telemetry.ReviewMetrics
}

// NewDriver returns a driver. A zero timeout only relies on ctx.
func NewDriver(svc agentservice.Service, timeout time.Duration, logger *slog.Logger, metrics *telemetry.ReviewMetrics) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		svc:     svc,
		timeout: timeout,
		logger:  telemetry.ComponentLogger(logger, "driver"),
		metrics: metrics,
	}
}

// Run executes agentID on threadID. It returns the run together with a
// *RunFailure when the run ends in any status but completed, and a TIMEOUT or
// CANCELED error when ctx ends first.
func (d *Driver) Run(ctx context.Context, threadID, agentID string) (*agentservice.Run, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "review.run")
	defer span.End()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	run, err := d.svc.CreateAndProcessRun(ctx, threadID, agentID)
	elapsed := time.Since(start)

	var runID, status string
	if run != nil {
		runID, status = run.ID, string(run.Status)
	}
	span.SetAttributes(telemetry.RunAttributes(threadID, runID, status)...)
	d.metrics.RecordRunDuration(context.WithoutCancel(ctx), status, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.CodeOf(err) == "" {
			err = errors.New(errors.CodeService, "run failed", err)
		}
		d.logger.Warn("run aborted", "thread_id", threadID, "run_id", runID, "error", err)
		return run, err
	}

	if run.Status != agentservice.RunStatusCompleted {
		failure := &RunFailure{RunID: run.ID, Status: run.Status, LastError: run.LastError}
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
		d.logger.Warn("run failed", "thread_id", threadID, "run_id", run.ID, "status", run.Status, "error", failure)
		return run, failure
	}

	d.logger.Info("run completed", "thread_id", threadID, "run_id", run.ID, "duration", elapsed)
	return run, nil
}
