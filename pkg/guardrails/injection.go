// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
)

// Contracts routinely say "act as an agent" or "maintenance mode", so only
// phrasing aimed at a model is matched.
var defaultInjectionPatterns = []string{
	`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(the\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?)`,
	`(?i)(show|reveal|print|display)\s+(me\s+)?your\s+(system\s+)?(prompt|instructions?)`,
	`(?i)what\s+(is|are)\s+your\s+system\s+(prompt|instructions?)`,
	`(?i)you\s+are\s+now\s+(a|an)\s+\w+\s+(assistant|model|ai)`,
	`(?i)do\s+anything\s+now`,
	`(?i)\bDAN\s+mode\b`,
	`(?i)\bjailbreak`,
	`(?i)bypass\s+(your\s+)?(safety|content\s+filter|guardrails?)`,
	`(?i)\]\]\s*system\s*:`,
	`<\|[a-z_]+\|>`,
	`\[/?INST\]`,
	`<</?SYS>>`,
}

// InjectionDetector rejects documents carrying instructions aimed at the
// reviewing agents.
type InjectionDetector struct {
	patterns []*regexp.Regexp
}

// NewInjectionDetector compiles the default patterns plus extra. Extra
// patterns that do not compile are returned as an error.
func NewInjectionDetector(extra ...string) (*InjectionDetector, error) {
	d := &InjectionDetector{}
	for _, p := range append(append([]string(nil), defaultInjectionPatterns...), extra...) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		d.patterns = append(d.patterns, re)
	}
	return d, nil
}

func (d *InjectionDetector) ID() string {
	return "prompt-injection"
}

// Check blocks on the first matching pattern.
func (d *InjectionDetector) Check(ctx context.Context, text string) CheckResult {
	for _, re := range d.patterns {
		if ctx.Err() != nil {
			return CheckResult{}
		}
		if m := re.FindString(text); m != "" {
			return CheckResult{
				Blocked:     true,
				Reason:      "potential prompt injection detected",
				GuardrailID: d.ID(),
				Matches:     []string{m},
			}
		}
	}
	return CheckResult{}
}

// WithInjectionDetector adds the default injection detector.
func WithInjectionDetector() Option {
	d, _ := NewInjectionDetector()
	return WithChecker(d)
}
