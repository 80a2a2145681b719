// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
)

const (
	smokeAgentName         = "test-agent"
	smokeAgentInstructions = "Say hello"
)

// runSmoke checks connectivity by creating one throwaway agent and deleting it.
func (a *app) runSmoke(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("smoke", fmt.Sprintf("unexpected args: %v", args))
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	svc, err := a.newService(a.cfg, a.logger)
	if err != nil {
		return err
	}

	agent, err := svc.CreateAgent(ctx, agentservice.AgentSpec{
		Name:         smokeAgentName,
		Model:        a.cfg.Agents.Model,
		Instructions: smokeAgentInstructions,
	})
	if err != nil {
		return err
	}
	if !a.global.JSON {
		fmt.Fprintf(a.stdout, "Created agent, ID: %s\n", agent.ID)
	}

	timeout := a.cfg.Review.CleanupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := svc.DeleteAgent(cleanupCtx, agent.ID); err != nil && !errors.HasCode(err, errors.CodeNotFound) {
		return err
	}

	if a.global.JSON {
		return a.printJSON(map[string]any{"agent_id": agent.ID, "deleted": true})
	}
	fmt.Fprintln(a.stdout, "Deleted agent")
	return nil
}
