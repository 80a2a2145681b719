// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentservice defines the narrow contract kairos-legal needs from a
// remote agent-hosting service: register and delete agents, open a thread,
// post and list messages, and run an agent on a thread to a terminal status.
//
// Tool dispatch, reasoning and generation happen remotely; nothing in this
// package interprets agent instructions.
package agentservice

import (
	"context"
	"time"
)

// Role identifies the author of a thread message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether no further transitions can happen.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// ToolDescriptor exposes one agent as a callable tool of another agent.
type ToolDescriptor struct {
	AgentID     string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentSpec is the request to register a new remote agent.
type AgentSpec struct {
	Name         string
	Model        string
	Instructions string
	Tools        []ToolDescriptor
}

// Agent is a registered remote agent. It is immutable after creation.
type Agent struct {
	ID           string
	Name         string
	Model        string
	Instructions string
	Tools        []ToolDescriptor
}

// Thread is a remote, append-only conversation.
type Thread struct {
	ID string
}

// Message is one entry of a thread. Text holds the message's text segments
// in the order the service returned them.
type Message struct {
	ID        string
	Role      Role
	Text      []string
	CreatedAt time.Time
}

// RunError is the error payload the service attaches to a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one execution of an agent against a thread.
type Run struct {
	ID        string
	ThreadID  string
	AgentID   string
	Status    RunStatus
	LastError *RunError
}

// Service is the remote agent-hosting API. Implementations return typed
// errors from pkg/errors: CodeNotFound for missing resources, CodeService
// for rejected calls, CodeCanceled/CodeTimeout when ctx ends.
type Service interface {
	CreateAgent(ctx context.Context, spec AgentSpec) (*Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error

	CreateThread(ctx context.Context) (*Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	PostMessage(ctx context.Context, threadID string, role Role, text string) (*Message, error)
	// ListMessages returns every message of the thread in ascending
	// creation order.
	ListMessages(ctx context.Context, threadID string) ([]Message, error)

	// CreateAndProcessRun submits the thread to the agent and blocks until
	// the run reaches a terminal status or ctx ends.
	CreateAndProcessRun(ctx context.Context, threadID, agentID string) (*Run, error)
}
