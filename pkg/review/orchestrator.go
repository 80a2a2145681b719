// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"fmt"
	"strings"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
)

// NewToolDescriptor exposes agent as a connected tool under its own name.
func NewToolDescriptor(agent *agentservice.Agent, description string) agentservice.ToolDescriptor {
	return agentservice.ToolDescriptor{
		AgentID:     agent.ID,
		Name:        agent.Name,
		Description: description,
	}
}

// Owner reports whether an agent was created in the current execution.
type Owner interface {
	Owns(agentID string) bool
}

// OrchestratorSpec configures the orchestrator agent.
type OrchestratorSpec struct {
	Name         string
	Instructions string
	Tools        []agentservice.ToolDescriptor
}

// Validate checks that the orchestrator only delegates to agents owned by
// owner, under unique non-empty names, and that it forbids fabrication.
func (s OrchestratorSpec) Validate(owner Owner) error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New(errors.CodeInvalidInput, "orchestrator name is required", nil)
	}
	if !strings.Contains(s.Instructions, NoFabricationRule) {
		return errors.New(errors.CodeInvalidInput, "orchestrator instructions must forbid fabrication", nil).
			WithContext("orchestrator", s.Name)
	}
	if len(s.Tools) == 0 {
		return errors.New(errors.CodeInvalidInput, "orchestrator needs at least one connected tool", nil).
			WithContext("orchestrator", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Tools))
	for i, tool := range s.Tools {
		if strings.TrimSpace(tool.Name) == "" {
			return errors.New(errors.CodeInvalidInput, fmt.Sprintf("tool %d has no name", i), nil)
		}
		if _, dup := seen[tool.Name]; dup {
			return errors.New(errors.CodeInvalidInput, "duplicate tool name", nil).WithContext("tool", tool.Name)
		}
		seen[tool.Name] = struct{}{}
		if owner == nil || !owner.Owns(tool.AgentID) {
			return errors.New(errors.CodeInvalidInput, "tool references an agent this review did not create", nil).
				WithContext("tool", tool.Name).
				WithContext("agent_id", tool.AgentID)
		}
	}
	return nil
}

// AgentSpec turns the orchestrator configuration into a create request.
func (s OrchestratorSpec) AgentSpec(model string) agentservice.AgentSpec {
	return agentservice.AgentSpec{
		Name:         s.Name,
		Model:        model,
		Instructions: s.Instructions,
		Tools:        append([]agentservice.ToolDescriptor(nil), s.Tools...),
	}
}
