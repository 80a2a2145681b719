// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/guardrails"
	"github.com/jllopis/kairos-legal/pkg/ledger"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

// Workflow variants, recorded with every review.
const (
	VariantBasic  = "basic"
	VariantFile   = "file"
	VariantIndex  = "index"
	VariantInline = "inline"
)

const defaultCleanupTimeout = 30 * time.Second

// Request is the input of one review.
type Request struct {
	Document string
	// Query drives index retrieval; the document is used when empty.
	Query string
	// References replaces the configured retriever when set.
	References string
}

// Result is the outcome of a successful review.
type Result struct {
	ReviewID       string    `json:"review_id"`
	Variant        string    `json:"variant"`
	ThreadID       string    `json:"thread_id"`
	RunID          string    `json:"run_id"`
	Answer         string    `json:"answer"`
	RiskLevel      string    `json:"risk_level,omitempty"`
	Complexity     string    `json:"complexity,omitempty"`
	Redactions     int       `json:"redactions,omitempty"`
	AgentsCreated  int       `json:"agents_created"`
	AgentsReleased int       `json:"agents_released"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Workflow runs the multi-agent legal review. It holds no per-review state,
// so one Workflow may serve concurrent reviews.
type Workflow struct {
	svc            agentservice.Service
	model          string
	retriever      retrieval.Retriever
	variant        string
	guard          *guardrails.Guard
	ledger         ledger.Store
	runTimeout     time.Duration
	cleanupTimeout time.Duration
	logger         *slog.Logger
	metrics        *telemetry.ReviewMetrics
	now            func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow) error

// WithRetriever seeds every review with references from r and tags reviews
// with variant.
func WithRetriever(r retrieval.Retriever, variant string) Option {
	return func(w *Workflow) error {
		if r == nil {
			return errors.New(errors.CodeConfig, "retriever is nil", nil)
		}
		w.retriever = r
		w.variant = variant
		return nil
	}
}

// WithGuard screens every document with g before any agent is created.
func WithGuard(g *guardrails.Guard) Option {
	return func(w *Workflow) error {
		w.guard = g
		return nil
	}
}

// WithLedger records every review in store.
func WithLedger(store ledger.Store) Option {
	return func(w *Workflow) error {
		w.ledger = store
		return nil
	}
}

// WithRunTimeout bounds the orchestrator run.
func WithRunTimeout(d time.Duration) Option {
	return func(w *Workflow) error {
		w.runTimeout = d
		return nil
	}
}

// WithCleanupTimeout bounds agent deletion, which runs even after ctx ends.
func WithCleanupTimeout(d time.Duration) Option {
	return func(w *Workflow) error {
		if d <= 0 {
			return errors.New(errors.CodeConfig, "cleanup timeout must be positive", nil)
		}
		w.cleanupTimeout = d
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) error {
		w.logger = logger
		return nil
	}
}

func WithMetrics(m *telemetry.ReviewMetrics) Option {
	return func(w *Workflow) error {
		w.metrics = m
		return nil
	}
}

// NewWorkflow returns a workflow creating agents on svc with model.
func NewWorkflow(svc agentservice.Service, model string, opts ...Option) (*Workflow, error) {
	if svc == nil {
		return nil, errors.New(errors.CodeConfig, "agent service is required", nil)
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New(errors.CodeConfig, "model deployment name is required", nil).
			WithContext("key", "agents.model")
	}
	w := &Workflow{
		svc:            svc,
		model:          model,
		variant:        VariantBasic,
		cleanupTimeout: defaultCleanupTimeout,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = telemetry.ComponentLogger(w.logger, "review")
	return w, nil
}

// Run reviews req.Document. Every agent created along the way is deleted
// before Run returns, whatever the outcome; deletion failures are logged and
// never replace the review error.
func (w *Workflow) Run(ctx context.Context, req Request) (res *Result, err error) {
	if strings.TrimSpace(req.Document) == "" {
		return nil, errors.New(errors.CodeInvalidInput, "legal document is empty", nil)
	}

	variant := w.variant
	if req.References != "" {
		variant = VariantInline
	}
	record := ledger.Review{
		ID:        uuid.NewString(),
		Variant:   variant,
		StartedAt: w.now(),
	}

	ctx, span := telemetry.Tracer().Start(ctx, "review.workflow")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrReviewID, record.ID),
		attribute.String(telemetry.AttrReviewVariant, variant),
	)
	logger := w.logger.With("review_id", record.ID, "variant", variant)

	registry := NewRegistry(w.svc, WithRegistryLogger(logger), WithRegistryMetrics(w.metrics))

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cleanupTimeout)
		defer cancel()

		if record.ThreadID != "" {
			if derr := w.svc.DeleteThread(cleanupCtx, record.ThreadID); derr != nil && !errors.HasCode(derr, errors.CodeNotFound) {
				logger.Warn("failed to delete thread", "thread_id", record.ThreadID, "error", derr)
			}
		}
		released, _ := registry.Release(cleanupCtx)

		record.AgentsCreated = registry.Created()
		record.AgentsReleased = released
		record.FinishedAt = w.now()
		record.Status = statusOf(err)
		if err != nil {
			record.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String(telemetry.AttrReviewStatus, record.Status))

		if w.ledger != nil {
			if lerr := w.ledger.Record(cleanupCtx, record); lerr != nil {
				logger.Warn("failed to record review", "error", lerr)
			}
		}
		w.metrics.RecordReview(cleanupCtx, variant, record.Status, err)

		if res != nil {
			res.AgentsCreated = record.AgentsCreated
			res.AgentsReleased = released
			res.FinishedAt = record.FinishedAt
		}
		logger.Info("review finished",
			"status", record.Status,
			"agents_created", record.AgentsCreated,
			"agents_released", released,
			"duration", record.Duration())
	}()

	document, redactions, err := w.guard.Screen(ctx, req.Document)
	if err != nil {
		return nil, err
	}
	if len(redactions) > 0 {
		logger.Info("masked personal data in document", "redactions", len(redactions))
		span.SetAttributes(attribute.Int("review.redactions", len(redactions)))
	}

	references, err := w.references(ctx, req)
	if err != nil {
		return nil, err
	}
	withRetrieval := variant != VariantBasic

	specialists := DefaultSpecialists(withRetrieval)
	tools := make([]agentservice.ToolDescriptor, 0, len(specialists))
	for _, s := range specialists {
		agent, err := registry.Create(ctx, agentservice.AgentSpec{
			Name:         s.Name,
			Model:        w.model,
			Instructions: s.Instructions,
		})
		if err != nil {
			return nil, err
		}
		tools = append(tools, NewToolDescriptor(agent, s.Description))
	}

	spec := OrchestratorSpec{
		Name:         OrchestratorAgent,
		Instructions: OrchestratorInstructions(withRetrieval),
		Tools:        tools,
	}
	if err := spec.Validate(registry); err != nil {
		return nil, err
	}
	orchestrator, err := registry.Create(ctx, spec.AgentSpec(w.model))
	if err != nil {
		return nil, err
	}
	record.OrchestratorID = orchestrator.ID

	thread, err := w.svc.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	record.ThreadID = thread.ID
	if _, err := w.svc.PostMessage(ctx, thread.ID, agentservice.RoleUser, SeedMessage(document, references)); err != nil {
		return nil, err
	}

	logger.Info("processing legal document", "thread_id", thread.ID, "orchestrator_id", orchestrator.ID, "tools", len(tools))
	run, err := NewDriver(w.svc, w.runTimeout, logger, w.metrics).Run(ctx, thread.ID, orchestrator.ID)
	if run != nil {
		record.RunID = run.ID
	}
	if err != nil {
		return nil, err
	}

	messages, err := w.svc.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	answer, ok := FinalAnswer(messages)
	if !ok {
		return nil, errors.New(errors.CodeRunFailure, "run completed without an agent answer", nil).
			WithContext("run_id", run.ID)
	}

	record.Answer = answer
	record.RiskLevel = ParseRiskLevel(answer)
	record.Complexity = ParseComplexity(answer)
	return &Result{
		ReviewID:   record.ID,
		Variant:    variant,
		ThreadID:   thread.ID,
		RunID:      run.ID,
		Answer:     answer,
		RiskLevel:  record.RiskLevel,
		Complexity: record.Complexity,
		Redactions: len(redactions),
		StartedAt:  record.StartedAt,
	}, nil
}

func (w *Workflow) references(ctx context.Context, req Request) (string, error) {
	retriever := w.retriever
	if req.References != "" {
		retriever = retrieval.Static(req.References)
	}
	if retriever == nil {
		return "", nil
	}
	query := req.Query
	if strings.TrimSpace(query) == "" {
		query = req.Document
	}
	refs, err := retriever.Retrieve(ctx, query)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.New(errors.CodeRetrieval, "failed to retrieve references", err)
		}
		return "", err
	}
	return refs, nil
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return ledger.StatusCompleted
	case errors.HasCode(err, errors.CodeRunFailure):
		return ledger.StatusFailed
	case errors.HasCode(err, errors.CodeTimeout):
		return ledger.StatusTimeout
	case errors.HasCode(err, errors.CodeCanceled):
		return ledger.StatusCanceled
	case errors.HasCode(err, errors.CodeInvalidInput):
		return ledger.StatusRejected
	default:
		return ledger.StatusError
	}
}
