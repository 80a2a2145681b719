// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience retries idempotent reads against the remote agent
// service. Mutating calls (agent create/delete, run submission) fail fast and
// never go through here.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/kairos-legal/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (must be >= 1).
	MaxAttempts int

	// InitialDelay is the initial backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff delay.
	MaxDelay time.Duration

	// Multiplier for exponential backoff (default 2.0).
	Multiplier float64

	// IsRecoverable determines if an error should be retried.
	// If nil, only errors marked recoverable are retried.
	IsRecoverable func(error) bool

	// Jitter adds randomness to the backoff; 0.1 means ±10%.
	Jitter float64
}

// DefaultRetryConfig returns the policy used for run status polling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   4,
		InitialDelay:  250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: errors.IsRecoverable,
	}
}

// WithMaxAttempts returns a new config with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(max int) RetryConfig {
	rc.MaxAttempts = max
	return rc
}

// WithInitialDelay returns a new config with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithIsRecoverable returns a new config with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// Do executes fn with retry logic, returning the last error if all attempts fail.
// Cancellation while waiting between attempts returns a CANCELED error
// wrapping the context error.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = errors.IsRecoverable
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(calculateBackoff(attempt, rc))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.New(errors.CodeCanceled, "canceled while waiting to retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("last_error", errString(lastErr))
			case <-timer.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !rc.IsRecoverable(err) {
			return err
		}
	}
	return lastErr
}

// calculateBackoff computes exponential backoff delay with jitter.
func calculateBackoff(attempt int, rc RetryConfig) time.Duration {
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(rc.Multiplier, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}
	if rc.Jitter > 0 {
		spread := float64(delay) * rc.Jitter
		delay = time.Duration(float64(delay) + spread*(2*rand.Float64()-1))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
