// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import (
	"regexp"
	"strings"

	"github.com/jllopis/kairos-legal/pkg/agentservice"
)

// FinalAnswer selects the answer of a thread listed in ascending order: the
// last text segment of the last agent message that has any text. User
// messages are never returned.
func FinalAnswer(messages []agentservice.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != agentservice.RoleAgent || len(msg.Text) == 0 {
			continue
		}
		return msg.Text[len(msg.Text)-1], true
	}
	return "", false
}

var (
	riskLevelRe  = regexp.MustCompile(`(?i)risk\s*level\W{0,6}(high|medium|low)\b`)
	complexityRe = regexp.MustCompile(`(?i)complexity\W{0,6}(?:level\W{0,6})?(high|medium|low)\b`)
	levelRe      = regexp.MustCompile(`(?i)\b(high|medium|low)\b`)
	riskRe       = regexp.MustCompile(`(?i)risk`)
)

// ParseRiskLevel extracts the risk level following a "Risk Level" label.
// Otherwise it takes the first High, Medium or Low token after "risk" on the
// same line, and returns "" when no line mentions risk.
func ParseRiskLevel(text string) string {
	if m := riskLevelRe.FindStringSubmatch(text); m != nil {
		return normalizeLevel(m[1])
	}
	for _, line := range strings.Split(text, "\n") {
		loc := riskRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if m := levelRe.FindStringSubmatch(line[loc[0]:]); m != nil {
			return normalizeLevel(m[1])
		}
	}
	return ""
}

// ParseComplexity extracts the level following a "Complexity" label.
func ParseComplexity(text string) string {
	if m := complexityRe.FindStringSubmatch(text); m != nil {
		return normalizeLevel(m[1])
	}
	return ""
}

func normalizeLevel(s string) string {
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
