// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package fake provides a scriptable in-memory agentservice.Service for
// tests and offline dry runs.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
)

// Outcome is what a scripted run produces: the agent messages appended to
// the thread (each a list of text segments), the terminal status and the
// last error for failed runs.
type Outcome struct {
	Replies   [][]string
	Status    agentservice.RunStatus
	LastError *agentservice.RunError
}

// Responder scripts the remote execution engine.
type Responder func(ctx context.Context, agent agentservice.Agent, transcript []agentservice.Message) Outcome

// Service is an in-memory agent service. The zero value is not usable; use New.
type Service struct {
	mu sync.Mutex

	responder Responder
	clock     func() time.Time
	seq       int

	agents  map[string]agentservice.Agent
	threads map[string][]agentservice.Message

	failCreate map[string]error
	failDelete map[string]error
	runErr     error
	blockRun   bool

	created  []string
	deleted  []string
	listed   int
	runCount int
}

var _ agentservice.Service = (*Service)(nil)

// Option configures the fake.
type Option func(*Service)

// WithResponder sets how runs behave.
func WithResponder(r Responder) Option {
	return func(s *Service) {
		s.responder = r
	}
}

// WithCreateError makes CreateAgent fail for the agent with the given name.
func WithCreateError(name string, err error) Option {
	return func(s *Service) {
		s.failCreate[name] = err
	}
}

// WithDeleteError makes DeleteAgent fail for the agent with the given name.
func WithDeleteError(name string, err error) Option {
	return func(s *Service) {
		s.failDelete[name] = err
	}
}

// WithRunError makes CreateAndProcessRun return err without a run.
func WithRunError(err error) Option {
	return func(s *Service) {
		s.runErr = err
	}
}

// WithBlockingRun makes CreateAndProcessRun block until ctx ends.
func WithBlockingRun() Option {
	return func(s *Service) {
		s.blockRun = true
	}
}

// New returns an empty fake. Without a responder runs complete with a single
// agent reply that reports a medium risk level.
func New(opts ...Option) *Service {
	s := &Service{
		responder:  DefaultResponder,
		clock:      time.Now,
		agents:     make(map[string]agentservice.Agent),
		threads:    make(map[string][]agentservice.Message),
		failCreate: make(map[string]error),
		failDelete: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultResponder completes the run with one structured agent reply.
func DefaultResponder(_ context.Context, agent agentservice.Agent, _ []agentservice.Message) Outcome {
	return Outcome{
		Status: agentservice.RunStatusCompleted,
		Replies: [][]string{{
			fmt.Sprintf("Clauses: Termination. Risk Level: Medium. Complexity: Low. (%d tools consulted)", len(agent.Tools)),
		}},
	}
}

func (s *Service) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

// CreateAgent implements agentservice.Service.
func (s *Service) CreateAgent(ctx context.Context, spec agentservice.AgentSpec) (*agentservice.Agent, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.CodeCanceled, "create agent canceled", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failCreate[spec.Name]; ok {
		return nil, err
	}
	for _, tool := range spec.Tools {
		if _, ok := s.agents[tool.AgentID]; !ok {
			return nil, errors.New(errors.CodeService, "connected agent does not exist", nil).
				WithContext("agent_id", tool.AgentID)
		}
	}
	agent := agentservice.Agent{
		ID:           s.nextID("asst"),
		Name:         spec.Name,
		Model:        spec.Model,
		Instructions: spec.Instructions,
		Tools:        append([]agentservice.ToolDescriptor(nil), spec.Tools...),
	}
	s.agents[agent.ID] = agent
	s.created = append(s.created, agent.ID)
	return &agent, nil
}

// DeleteAgent implements agentservice.Service.
func (s *Service) DeleteAgent(_ context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return errors.New(errors.CodeNotFound, "agent not found", nil).WithContext("agent_id", agentID)
	}
	if err, ok := s.failDelete[agent.Name]; ok {
		return err
	}
	delete(s.agents, agentID)
	s.deleted = append(s.deleted, agentID)
	return nil
}

// CreateThread implements agentservice.Service.
func (s *Service) CreateThread(ctx context.Context) (*agentservice.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.New(errors.CodeCanceled, "create thread canceled", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("thread")
	s.threads[id] = nil
	return &agentservice.Thread{ID: id}, nil
}

// DeleteThread implements agentservice.Service.
func (s *Service) DeleteThread(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[threadID]; !ok {
		return errors.New(errors.CodeNotFound, "thread not found", nil).WithContext("thread_id", threadID)
	}
	delete(s.threads, threadID)
	return nil
}

// PostMessage implements agentservice.Service.
func (s *Service) PostMessage(_ context.Context, threadID string, role agentservice.Role, text string) (*agentservice.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(threadID, role, []string{text})
}

func (s *Service) appendLocked(threadID string, role agentservice.Role, text []string) (*agentservice.Message, error) {
	msgs, ok := s.threads[threadID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "thread not found", nil).WithContext("thread_id", threadID)
	}
	msg := agentservice.Message{
		ID:        s.nextID("msg"),
		Role:      role,
		Text:      append([]string(nil), text...),
		CreatedAt: s.clock(),
	}
	s.threads[threadID] = append(msgs, msg)
	return &msg, nil
}

// ListMessages implements agentservice.Service.
func (s *Service) ListMessages(_ context.Context, threadID string) ([]agentservice.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listed++
	msgs, ok := s.threads[threadID]
	if !ok {
		return nil, errors.New(errors.CodeNotFound, "thread not found", nil).WithContext("thread_id", threadID)
	}
	return append([]agentservice.Message(nil), msgs...), nil
}

// CreateAndProcessRun implements agentservice.Service.
func (s *Service) CreateAndProcessRun(ctx context.Context, threadID, agentID string) (*agentservice.Run, error) {
	s.mu.Lock()
	s.runCount++
	if s.runErr != nil {
		err := s.runErr
		s.mu.Unlock()
		return nil, err
	}
	agent, ok := s.agents[agentID]
	if !ok {
		s.mu.Unlock()
		return nil, errors.New(errors.CodeNotFound, "agent not found", nil).WithContext("agent_id", agentID)
	}
	transcript, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return nil, errors.New(errors.CodeNotFound, "thread not found", nil).WithContext("thread_id", threadID)
	}
	transcript = append([]agentservice.Message(nil), transcript...)
	run := &agentservice.Run{ID: s.nextID("run"), ThreadID: threadID, AgentID: agentID, Status: agentservice.RunStatusInProgress}
	block := s.blockRun
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		code := errors.CodeCanceled
		if ctx.Err() == context.DeadlineExceeded {
			code = errors.CodeTimeout
		}
		run.Status = agentservice.RunStatusCancelled
		return run, errors.New(code, "wait for run ended", ctx.Err())
	}

	outcome := s.responder(ctx, agent, transcript)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reply := range outcome.Replies {
		if _, err := s.appendLocked(threadID, agentservice.RoleAgent, reply); err != nil {
			return nil, err
		}
	}
	run.Status = outcome.Status
	if run.Status == "" {
		run.Status = agentservice.RunStatusCompleted
	}
	run.LastError = outcome.LastError
	return run, nil
}

// Created returns the IDs of every agent created so far, in order.
func (s *Service) Created() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.created...)
}

// Deleted returns the IDs of every agent deleted so far, in order.
func (s *Service) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// Live returns the number of agents that exist remotely.
func (s *Service) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents)
}

// Agent returns a registered agent by ID.
func (s *Service) Agent(id string) (agentservice.Agent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	return a, ok
}

// ListCalls returns how many times ListMessages was called.
func (s *Service) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listed
}

// RunCount returns how many runs were submitted.
func (s *Service) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCount
}
