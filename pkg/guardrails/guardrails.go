// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails screens legal documents before they are posted to a
// remote review thread.
//
// Checkers reject a document outright (prompt injection hidden in a
// contract, for example). Filters rewrite it, masking personal data that
// should not leave the local machine:
//
//	guard := guardrails.New(
//	    guardrails.WithInjectionDetector(),
//	    guardrails.WithPIIMasking(),
//	)
//	text, redactions, err := guard.Screen(ctx, document)
package guardrails

import (
	"context"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// CheckResult is the outcome of a checker.
type CheckResult struct {
	Blocked     bool
	Reason      string
	GuardrailID string
	// Matches lists what triggered the block.
	Matches []string
}

// Redaction describes a single masked span.
type Redaction struct {
	Type        string `json:"type"`
	Replacement string `json:"replacement"`
	// Position is the byte offset of the span in the text the filter saw.
	Position int `json:"position"`
}

// Checker decides whether a document may be reviewed at all.
type Checker interface {
	Check(ctx context.Context, text string) CheckResult
	ID() string
}

// Filter rewrites a document before review.
type Filter interface {
	Filter(ctx context.Context, text string) (string, []Redaction)
	ID() string
}

// Guard runs checkers, then filters. It is immutable after New and safe for
// concurrent use.
type Guard struct {
	checkers []Checker
	filters  []Filter
}

type Option func(*Guard)

func New(opts ...Option) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithChecker adds a checker.
func WithChecker(c Checker) Option {
	return func(g *Guard) {
		g.checkers = append(g.checkers, c)
	}
}

// WithFilter adds a filter. Filters run in the order they were added, each
// one seeing the output of the previous.
func WithFilter(f Filter) Option {
	return func(g *Guard) {
		g.filters = append(g.filters, f)
	}
}

// Empty reports whether the guard does nothing.
func (g *Guard) Empty() bool {
	return g == nil || (len(g.checkers) == 0 && len(g.filters) == 0)
}

// Screen returns the text to review. A blocked document yields an
// INVALID_INPUT error naming the guardrail; a canceled ctx blocks too.
func (g *Guard) Screen(ctx context.Context, text string) (string, []Redaction, error) {
	if g.Empty() {
		return text, nil, nil
	}
	for _, c := range g.checkers {
		if err := ctx.Err(); err != nil {
			return "", nil, errors.New(errors.CodeCanceled, "document screening canceled", err)
		}
		res := c.Check(ctx, text)
		if res.Blocked {
			return "", nil, errors.New(errors.CodeInvalidInput, "document rejected: "+res.Reason, nil).
				WithContext("guardrail", c.ID()).
				WithContext("matches", res.Matches)
		}
	}

	var redactions []Redaction
	for _, f := range g.filters {
		if err := ctx.Err(); err != nil {
			return "", nil, errors.New(errors.CodeCanceled, "document screening canceled", err)
		}
		var r []Redaction
		text, r = f.Filter(ctx, text)
		redactions = append(redactions, r...)
	}
	return text, redactions, nil
}
