// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// Registry creates remote agents and remembers them so Release can delete
// every one of them. A Registry belongs to a single workflow execution.
type Registry struct {
	svc     agentservice.Service
	logger  *slog.Logger
	metrics *telemetry.ReviewMetrics

	mu      sync.Mutex
	agents  []agentservice.Agent
	owned   map[string]struct{}
	retired int
}

var _ Owner = (*Registry)(nil)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used for cleanup warnings.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithRegistryMetrics records agent lifecycle counters.
func WithRegistryMetrics(m *telemetry.ReviewMetrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry returns an empty registry over svc.
func NewRegistry(svc agentservice.Service, opts ...RegistryOption) *Registry {
	r := &Registry{
		svc:    svc,
		logger: slog.Default(),
		owned:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = telemetry.ComponentLogger(r.logger, "registry")
	return r
}

// Create registers a new remote agent. Only agents that were created
// successfully are tracked.
func (r *Registry) Create(ctx context.Context, spec agentservice.AgentSpec) (*agentservice.Agent, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "review.agent.create")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes("", spec.Name, spec.Model, len(spec.Tools))...)

	agent, err := r.svc.CreateAgent(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrAgentID, agent.ID))

	r.mu.Lock()
	r.agents = append(r.agents, *agent)
	r.owned[agent.ID] = struct{}{}
	r.mu.Unlock()

	r.metrics.RecordAgentCreated(ctx, agent.Name)
	r.logger.Debug("agent created", "agent_id", agent.ID, "agent", agent.Name, "tools", len(agent.Tools))
	return agent, nil
}

// Owns implements Owner.
func (r *Registry) Owns(agentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.owned[agentID]
	return ok
}

// Created returns how many agents were created, released or not.
func (r *Registry) Created() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.agents) + r.retired
}

// Release deletes every held agent in reverse creation order, so the
// orchestrator goes before the specialists it references. A failed delete is
// logged and counted; the remaining agents are still deleted. NotFound means
// the agent is already gone and counts as released. It returns how many
// agents were released and the joined failures.
func (r *Registry) Release(ctx context.Context) (int, error) {
	r.mu.Lock()
	agents := r.agents
	r.agents = nil
	r.owned = make(map[string]struct{})
	r.mu.Unlock()

	var (
		released int
		errs     []error
	)
	for i := len(agents) - 1; i >= 0; i-- {
		agent := agents[i]
		err := r.delete(ctx, agent)
		if err != nil && errors.HasCode(err, errors.CodeNotFound) {
			r.logger.Warn("agent already deleted", "agent_id", agent.ID, "agent", agent.Name)
			err = nil
		}
		r.metrics.RecordAgentReleased(ctx, agent.Name, err)
		if err != nil {
			r.logger.Warn("failed to delete agent", "agent_id", agent.ID, "agent", agent.Name, "error", err)
			errs = append(errs, fmt.Errorf("delete %s (%s): %w", agent.Name, agent.ID, err))
			continue
		}
		released++
	}

	r.mu.Lock()
	r.retired += len(agents)
	r.mu.Unlock()

	if len(errs) > 0 {
		return released, errors.New(errors.CodeService,
			fmt.Sprintf("%d of %d agents could not be deleted", len(errs), len(agents)),
			errors.Join(errs...))
	}
	return released, nil
}

func (r *Registry) delete(ctx context.Context, agent agentservice.Agent) error {
	ctx, span := telemetry.Tracer().Start(ctx, "review.agent.delete")
	defer span.End()
	span.SetAttributes(telemetry.AgentAttributes(agent.ID, agent.Name, "", 0)...)

	if err := r.svc.DeleteAgent(ctx, agent.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
