// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
	"github.com/jllopis/kairos-legal/pkg/agentservice/openai"
	"github.com/jllopis/kairos-legal/pkg/config"
	"github.com/jllopis/kairos-legal/pkg/errors"
	"github.com/jllopis/kairos-legal/pkg/guardrails"
	"github.com/jllopis/kairos-legal/pkg/ledger"
	"github.com/jllopis/kairos-legal/pkg/retrieval"
	"github.com/jllopis/kairos-legal/pkg/retrieval/embed"
	"github.com/jllopis/kairos-legal/pkg/retrieval/qdrant"
	"github.com/jllopis/kairos-legal/pkg/review"
	"github.com/jllopis/kairos-legal/pkg/telemetry"
)

func newAgentService(cfg *config.Config, logger *slog.Logger) (agentservice.Service, error) {
	svc, err := openai.New(cfg.Agents.Endpoint,
		openai.WithAPIKey(cfg.Agents.APIKey),
		openai.WithToken(cfg.Agents.Token),
		openai.WithAPIVersion(cfg.Agents.APIVersion),
		openai.WithPollInterval(cfg.Agents.PollInterval),
		openai.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func newEmbedder(cfg config.SearchConfig) retrieval.Embedder {
	if cfg.EmbedderProvider == config.EmbedderOpenAI {
		return embed.NewOpenAI(cfg.EmbedderBaseURL, cfg.EmbedderAPIKey, cfg.EmbedderModel)
	}
	return embed.NewOllama(cfg.EmbedderBaseURL, cfg.EmbedderModel)
}

func openIndex(cfg config.SearchConfig, logger *slog.Logger) (*qdrant.Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return qdrant.New(cfg.Endpoint, cfg.Index, newEmbedder(cfg),
		qdrant.WithVectorSize(cfg.VectorSize),
		qdrant.WithScoreThreshold(cfg.ScoreThreshold),
		qdrant.WithLogger(logger),
	)
}

// variantOf names the review variant a retrieval mode produces. Unknown modes
// yield "" and are rejected by Config.Validate.
func variantOf(mode string) string {
	switch mode {
	case "", config.RetrievalNone:
		return review.VariantBasic
	case config.RetrievalFile:
		return review.VariantFile
	case config.RetrievalIndex:
		return review.VariantIndex
	default:
		return ""
	}
}

// newRetriever returns the retriever for the configured mode, the matching
// variant and a release function.
func newRetriever(cfg *config.Config, logger *slog.Logger) (retrieval.Retriever, string, func(), error) {
	noop := func() {}
	switch cfg.Review.Retrieval {
	case "", config.RetrievalNone:
		return nil, variantOf(cfg.Review.Retrieval), noop, nil
	case config.RetrievalFile:
		return retrieval.NewFileRetriever(cfg.Review.ReferencesFile), variantOf(config.RetrievalFile), noop, nil
	case config.RetrievalIndex:
		idx, err := openIndex(cfg.Search, logger)
		if err != nil {
			return nil, "", noop, err
		}
		r, err := retrieval.NewIndexRetriever(idx, cfg.Search.TopK)
		if err != nil {
			_ = idx.Close()
			return nil, "", noop, err
		}
		return r, variantOf(config.RetrievalIndex), func() { _ = idx.Close() }, nil
	default:
		return nil, "", noop, errors.New(errors.CodeConfig, "unknown retrieval mode", nil).
			WithContext("key", "review.retrieval")
	}
}

func openLedger(cfg config.LedgerConfig) (ledger.Store, error) {
	switch cfg.Driver {
	case "", config.LedgerMemory:
		return ledger.NewMemoryStore(), nil
	case config.LedgerSQLite:
		return ledger.OpenSQLite(cfg.DSN)
	default:
		return nil, errors.New(errors.CodeConfig, "unknown ledger driver", nil).WithContext("key", "ledger.driver")
	}
}

func newGuard(cfg config.ReviewConfig) *guardrails.Guard {
	var opts []guardrails.Option
	if cfg.BlockInjection {
		opts = append(opts, guardrails.WithInjectionDetector())
	}
	if cfg.MaskPII {
		opts = append(opts, guardrails.WithPIIMasking())
	}
	return guardrails.New(opts...)
}

// newWorkflow assembles the review workflow from configuration. The returned
// function releases the ledger and retrieval resources.
func (a *app) newWorkflow() (*review.Workflow, func(), error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}
	svc, err := a.newService(a.cfg, a.logger)
	if err != nil {
		return nil, nil, err
	}
	store, err := openLedger(a.cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	retriever, variant, closeRetriever, err := newRetriever(a.cfg, a.logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	metrics, err := telemetry.NewReviewMetrics()
	if err != nil {
		a.logger.Warn("review metrics disabled", "error", err)
	}

	opts := []review.Option{
		review.WithLedger(store),
		review.WithGuard(newGuard(a.cfg.Review)),
		review.WithRunTimeout(a.cfg.Review.RunTimeout),
		review.WithLogger(a.logger),
		review.WithMetrics(metrics),
	}
	if a.cfg.Review.CleanupTimeout > 0 {
		opts = append(opts, review.WithCleanupTimeout(a.cfg.Review.CleanupTimeout))
	}
	if retriever != nil {
		opts = append(opts, review.WithRetriever(retriever, variant))
	}
	w, err := review.NewWorkflow(svc, a.cfg.Agents.Model, opts...)
	if err != nil {
		closeRetriever()
		_ = store.Close()
		return nil, nil, err
	}
	release := func() {
		closeRetriever()
		if err := store.Close(); err != nil {
			a.logger.Warn("failed to close ledger", "error", err)
		}
	}
	return w, release, nil
}
