// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger records the outcome of every review workflow execution.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// Review statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusCanceled  = "canceled"
	StatusRejected  = "rejected"
	StatusError     = "error"
)

// Review is one workflow execution.
type Review struct {
	ID             string    `json:"id"`
	Variant        string    `json:"variant"`
	ThreadID       string    `json:"thread_id,omitempty"`
	OrchestratorID string    `json:"orchestrator_id,omitempty"`
	RunID          string    `json:"run_id,omitempty"`
	Status         string    `json:"status"`
	Answer         string    `json:"answer,omitempty"`
	RiskLevel      string    `json:"risk_level,omitempty"`
	Complexity     string    `json:"complexity,omitempty"`
	Error          string    `json:"error,omitempty"`
	AgentsCreated  int       `json:"agents_created"`
	AgentsReleased int       `json:"agents_released"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Duration is the wall time of the review.
func (r Review) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Filter limits List queries.
type Filter struct {
	Status  string
	Variant string
	Limit   int
}

// Store persists reviews. Record replaces an existing review with the same ID.
type Store interface {
	Record(ctx context.Context, review Review) error
	Get(ctx context.Context, id string) (Review, error)
	List(ctx context.Context, filter Filter) ([]Review, error)
	Close() error
}

// MemoryStore keeps reviews in memory.
type MemoryStore struct {
	mu      sync.Mutex
	reviews map[string]Review
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reviews: make(map[string]Review)}
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, review Review) error {
	if review.ID == "" {
		return errors.New(errors.CodeInvalidInput, "review id is required", nil)
	}
	review.StartedAt = normalizeTime(review.StartedAt)
	review.FinishedAt = normalizeTime(review.FinishedAt)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews[review.ID] = review
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return Review{}, errors.New(errors.CodeNotFound, "review not found", nil).WithContext("review_id", id)
	}
	return r, nil
}

// List implements Store. Most recent reviews come first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Review, error) {
	s.mu.Lock()
	out := make([]Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Variant != "" && r.Variant != filter.Variant {
			continue
		}
		out = append(out, r)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// normalizeTime ensures timestamps are in UTC.
func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return value.UTC()
}
