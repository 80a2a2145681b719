// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/jllopis/kairos-legal/pkg/mcp"
)

// runMCP serves the review tool over stdio until the client disconnects.
func (a *app) runMCP(_ context.Context, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("mcp", fmt.Sprintf("unexpected args: %v", args))
	}
	workflow, release, err := a.newWorkflow()
	if err != nil {
		return err
	}
	defer release()

	a.logger.Info("serving MCP over stdio", "tool", mcp.ReviewToolName)
	return mcp.NewServer(serviceName, version, workflow, a.logger).ServeStdio()
}
