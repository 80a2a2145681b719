// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai implements agentservice.Service over an Assistants-compatible
// REST API (OpenAI Assistants v2 or Azure AI Agents) using openai-go.
//
// Specialists are exposed to the orchestrator as connected_agent tools, a
// tool type the SDK has no typed parameter for; the tools array is therefore
// written into the request body directly.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/resilience"
)

const defaultPollInterval = time.Second

// Service implements agentservice.Service.
type Service struct {
	client       openai.Client
	pollInterval time.Duration
	retry        resilience.RetryConfig
	logger       *slog.Logger

	endpoint   string
	apiKey     string
	token      string
	apiVersion string
	httpClient *http.Client
}

var _ agentservice.Service = (*Service)(nil)

// Option configures the Service.
type Option func(*Service)

// WithAPIKey authenticates with an "api-key" header (Azure resource keys).
func WithAPIKey(key string) Option {
	return func(s *Service) {
		s.apiKey = key
	}
}

// WithToken authenticates with an "Authorization: Bearer" header.
func WithToken(token string) Option {
	return func(s *Service) {
		s.token = token
	}
}

// WithAPIVersion adds the api-version query parameter to every request.
func WithAPIVersion(version string) Option {
	return func(s *Service) {
		s.apiVersion = version
	}
}

// WithPollInterval sets how often run status is polled.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithRetry sets the retry policy for run status polls.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(s *Service) {
		s.retry = rc
	}
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) {
		s.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Service for the project endpoint.
func New(endpoint string, opts ...Option) (*Service, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New(errors.CodeConfig, "agent service endpoint is required", nil)
	}
	s := &Service{
		endpoint:     endpoint,
		pollInterval: defaultPollInterval,
		retry:        resilience.DefaultRetryConfig(),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !strings.HasSuffix(s.endpoint, "/") {
		s.endpoint += "/"
	}

	reqOpts := []option.RequestOption{
		option.WithBaseURL(s.endpoint),
		// Mutating calls must not be replayed; polls retry through s.retry.
		option.WithMaxRetries(0),
	}
	if s.token != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(s.token))
	}
	if s.apiKey != "" {
		reqOpts = append(reqOpts, option.WithHeader("api-key", s.apiKey))
	}
	if s.apiVersion != "" {
		reqOpts = append(reqOpts, option.WithQuery("api-version", s.apiVersion))
	}
	if s.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(s.httpClient))
	}
	s.client = openai.NewClient(reqOpts...)
	return s, nil
}

// CreateAgent registers a new assistant. Connected-agent tools are written
// into the body as {"type":"connected_agent","connected_agent":{...}}.
func (s *Service) CreateAgent(ctx context.Context, spec agentservice.AgentSpec) (*agentservice.Agent, error) {
	params := openai.BetaAssistantNewParams{
		Model:        shared.ChatModel(spec.Model),
		Name:         openai.String(spec.Name),
		Instructions: openai.String(spec.Instructions),
	}
	var reqOpts []option.RequestOption
	if len(spec.Tools) > 0 {
		reqOpts = append(reqOpts, option.WithJSONSet("tools", connectedAgentTools(spec.Tools)))
	}

	assistant, err := s.client.Beta.Assistants.New(ctx, params, reqOpts...)
	if err != nil {
		return nil, classify(err, "create agent").WithContext("agent", spec.Name)
	}
	s.logger.DebugContext(ctx, "agent created", "agent", spec.Name, "agent_id", assistant.ID)
	return &agentservice.Agent{
		ID:           assistant.ID,
		Name:         spec.Name,
		Model:        spec.Model,
		Instructions: spec.Instructions,
		Tools:        append([]agentservice.ToolDescriptor(nil), spec.Tools...),
	}, nil
}

// DeleteAgent removes an assistant.
func (s *Service) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := s.client.Beta.Assistants.Delete(ctx, agentID); err != nil {
		return classify(err, "delete agent").WithContext("agent_id", agentID)
	}
	return nil
}

// CreateThread opens an empty thread.
func (s *Service) CreateThread(ctx context.Context) (*agentservice.Thread, error) {
	thread, err := s.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return nil, classify(err, "create thread")
	}
	return &agentservice.Thread{ID: thread.ID}, nil
}

// DeleteThread removes a thread and its messages.
func (s *Service) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := s.client.Beta.Threads.Delete(ctx, threadID); err != nil {
		return classify(err, "delete thread").WithContext("thread_id", threadID)
	}
	return nil
}

// PostMessage appends a text message to the thread.
func (s *Service) PostMessage(ctx context.Context, threadID string, role agentservice.Role, text string) (*agentservice.Message, error) {
	params := openai.BetaThreadMessageNewParams{
		Content: openai.BetaThreadMessageNewParamsContentUnion{OfString: openai.String(text)},
		Role:    openai.BetaThreadMessageNewParamsRoleUser,
	}
	if role == agentservice.RoleAgent {
		params.Role = openai.BetaThreadMessageNewParamsRoleAssistant
	}
	msg, err := s.client.Beta.Threads.Messages.New(ctx, threadID, params)
	if err != nil {
		return nil, classify(err, "post message").WithContext("thread_id", threadID)
	}
	out := convertMessage(*msg)
	return &out, nil
}

// ListMessages pages through the thread in ascending creation order.
func (s *Service) ListMessages(ctx context.Context, threadID string) ([]agentservice.Message, error) {
	iter := s.client.Beta.Threads.Messages.ListAutoPaging(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
		Limit: openai.Int(100),
	})
	var out []agentservice.Message
	for iter.Next() {
		out = append(out, convertMessage(iter.Current()))
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, "list messages").WithContext("thread_id", threadID)
	}
	return out, nil
}

// CreateAndProcessRun starts a run and polls it until it reaches a terminal
// status. When ctx ends first the run is cancelled remotely on a best-effort
// basis and a CANCELED or TIMEOUT error is returned.
func (s *Service) CreateAndProcessRun(ctx context.Context, threadID, agentID string) (*agentservice.Run, error) {
	created, err := s.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: agentID,
	})
	if err != nil {
		return nil, classify(err, "create run").
			WithContext("thread_id", threadID).
			WithContext("agent_id", agentID)
	}
	run := convertRun(*created)
	s.logger.DebugContext(ctx, "run created", "run_id", run.ID, "thread_id", threadID)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for !run.Status.Terminal() {
		select {
		case <-ctx.Done():
			s.cancelRun(ctx, threadID, run.ID)
			return &run, classify(ctx.Err(), "wait for run").WithContext("run_id", run.ID)
		case <-ticker.C:
		}

		err := s.retry.Do(ctx, func() error {
			polled, err := s.client.Beta.Threads.Runs.Get(ctx, threadID, run.ID)
			if err != nil {
				return classify(err, "poll run").WithContext("run_id", run.ID)
			}
			run = convertRun(*polled)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				s.cancelRun(ctx, threadID, run.ID)
			}
			return &run, err
		}
		s.logger.DebugContext(ctx, "run polled", "run_id", run.ID, "status", run.Status)
	}
	return &run, nil
}

func (s *Service) cancelRun(ctx context.Context, threadID, runID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, err := s.client.Beta.Threads.Runs.Cancel(cctx, threadID, runID); err != nil {
		s.logger.WarnContext(ctx, "run cancel failed", "run_id", runID, "error", err)
	}
}

type connectedAgent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type connectedAgentTool struct {
	Type           string         `json:"type"`
	ConnectedAgent connectedAgent `json:"connected_agent"`
}

func connectedAgentTools(tools []agentservice.ToolDescriptor) []connectedAgentTool {
	out := make([]connectedAgentTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, connectedAgentTool{
			Type: "connected_agent",
			ConnectedAgent: connectedAgent{
				ID:          t.AgentID,
				Name:        t.Name,
				Description: t.Description,
			},
		})
	}
	return out
}

func convertMessage(msg openai.Message) agentservice.Message {
	out := agentservice.Message{
		ID:        msg.ID,
		Role:      agentservice.RoleUser,
		CreatedAt: time.Unix(msg.CreatedAt, 0).UTC(),
	}
	if msg.Role == openai.MessageRoleAssistant {
		out.Role = agentservice.RoleAgent
	}
	for _, part := range msg.Content {
		if part.Type == "text" {
			out.Text = append(out.Text, part.Text.Value)
		}
	}
	return out
}

func convertRun(run openai.Run) agentservice.Run {
	out := agentservice.Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		AgentID:  run.AssistantID,
		Status:   agentservice.RunStatus(run.Status),
	}
	if run.LastError.Message != "" || run.LastError.Code != "" {
		out.LastError = &agentservice.RunError{
			Code:    string(run.LastError.Code),
			Message: run.LastError.Message,
		}
	}
	return out
}

// classify maps transport and API errors onto typed errors. Rate limits and
// server errors are marked recoverable so polls can retry them.
func classify(err error, op string) *errors.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.New(errors.CodeTimeout, op+" timed out", err)
	case errors.Is(err, context.Canceled):
		return errors.New(errors.CodeCanceled, op+" canceled", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		switch {
		case status == http.StatusNotFound:
			return errors.New(errors.CodeNotFound, op+": resource not found", err).
				WithContext("status", status)
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return errors.New(errors.CodeConfig, op+": credentials rejected", err).
				WithContext("status", status)
		case status == http.StatusTooManyRequests || status >= 500:
			return errors.New(errors.CodeService, fmt.Sprintf("%s: service returned %d", op, status), err).
				WithContext("status", status).
				WithRecoverable(true)
		default:
			return errors.New(errors.CodeService, fmt.Sprintf("%s: rejected with %d", op, status), err).
				WithContext("status", status)
		}
	}
	return errors.New(errors.CodeService, op+" failed", err).WithRecoverable(true)
}
