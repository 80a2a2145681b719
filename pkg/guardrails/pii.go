// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"regexp"
	"slices"
)

// PIIType categorizes masked data.
type PIIType string

const (
	PIIEmail      PIIType = "email"
	PIIPhone      PIIType = "phone"
	PIISSN        PIIType = "ssn"
	PIICreditCard PIIType = "credit_card"
	PIIIBAN       PIIType = "iban"
	PIIIPAddress  PIIType = "ip_address"
)

type piiPattern struct {
	typ     PIIType
	pattern *regexp.Regexp
	mask    string
}

// More specific patterns first: an IBAN contains what looks like a card
// number, and card numbers look like phone numbers.
var defaultPIIPatterns = []piiPattern{
	{PIIIBAN, regexp.MustCompile(`\b[A-Z]{2}[0-9]{2}(?: ?[A-Z0-9]{4}){3,7}(?: ?[A-Z0-9]{1,3})?\b`), "[IBAN]"},
	{PIICreditCard, regexp.MustCompile(`\b[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}[- ]?[0-9]{4}\b`), "[CREDIT_CARD]"},
	{PIISSN, regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`), "[SSN]"},
	{PIIEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{PIIPhone, regexp.MustCompile(`\+[0-9]{1,3}[-. ]?(?:\(?[0-9]{2,4}\)?[-. ]?){2,4}[0-9]{2,4}\b`), "[PHONE]"},
	{PIIIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), "[IP_ADDRESS]"},
}

// PIIMasker replaces personal data with typed placeholders such as
// "[EMAIL]". Dates and names are left alone: a contract without them cannot
// be reviewed.
type PIIMasker struct {
	patterns []piiPattern
}

// NewPIIMasker masks every supported type, or only types when given.
func NewPIIMasker(types ...PIIType) *PIIMasker {
	m := &PIIMasker{}
	for _, p := range defaultPIIPatterns {
		if len(types) == 0 || slices.Contains(types, p.typ) {
			m.patterns = append(m.patterns, p)
		}
	}
	return m
}

func (m *PIIMasker) ID() string {
	return "pii-mask"
}

// Filter returns text with every match masked. Positions refer to the text
// as it was when the matching pattern ran.
func (m *PIIMasker) Filter(ctx context.Context, text string) (string, []Redaction) {
	var redactions []Redaction
	for _, p := range m.patterns {
		if ctx.Err() != nil {
			break
		}
		matches := p.pattern.FindAllStringIndex(text, -1)
		// Replace back to front so earlier offsets stay valid.
		for i := len(matches) - 1; i >= 0; i-- {
			start, end := matches[i][0], matches[i][1]
			redactions = append(redactions, Redaction{Type: string(p.typ), Replacement: p.mask, Position: start})
			text = text[:start] + p.mask + text[end:]
		}
	}
	return text, redactions
}

// WithPIIMasking adds a PIIMasker for types (all when empty).
func WithPIIMasking(types ...PIIType) Option {
	return WithFilter(NewPIIMasker(types...))
}
