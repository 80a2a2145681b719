// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package review

import "strings"

// Specialist names. They double as connected-tool names on the orchestrator.
const (
	ComplianceRiskAgent       = "compliance_risk_agent"
	ClauseClassificationAgent = "clause_classification_agent"
	LegalComplexityAgent      = "legal_complexity_agent"
	LegalRAGAgent             = "legal_rag_agent"
	OrchestratorAgent         = "legal_orchestrator_agent"
)

// NoFabricationRule is part of every orchestrator protocol.
const NoFabricationRule = "Do NOT invent facts or laws."

// Specialist is one remote agent of the review roster.
type Specialist struct {
	Name         string
	Description  string
	Instructions string
}

var (
	complianceRisk = Specialist{
		Name:        ComplianceRiskAgent,
		Description: "Evaluates compliance risk",
		Instructions: `Assess legal compliance risk in the given document.
Respond with:
- Risk Level: High / Medium / Low
- Brief explanation
Only assess risk, do not summarize.`,
	}

	clauseClassification = Specialist{
		Name:        ClauseClassificationAgent,
		Description: "Classifies legal clauses",
		Instructions: `Identify and classify clauses in the document.
Use categories such as:
- Termination
- Liability
- Data Privacy
- Confidentiality
- Payment
Return a short list with clause type and brief description.`,
	}

	legalComplexity = Specialist{
		Name:        LegalComplexityAgent,
		Description: "Estimates legal complexity",
		Instructions: `Estimate the legal review complexity of this document.
Use:
- Low: Standard contract
- Medium: Multiple obligations or jurisdictions
- High: Regulatory, cross-border, or ambiguous clauses
Provide brief justification.`,
	}

	legalRAG = Specialist{
		Name:        LegalRAGAgent,
		Description: "Retrieves grounded legal references",
		Instructions: `Retrieve relevant laws, regulations, or precedents
based on the provided legal document and the reference material in the thread.
Return only grounded reference text.`,
	}
)

// DefaultSpecialists returns the review roster in creation order. The
// retrieval agent is only part of it when references are in play.
func DefaultSpecialists(withRetrieval bool) []Specialist {
	roster := []Specialist{complianceRisk, clauseClassification, legalComplexity}
	if withRetrieval {
		roster = append(roster, legalRAG)
	}
	return roster
}

// OrchestratorInstructions builds the orchestrator protocol.
func OrchestratorInstructions(withRetrieval bool) string {
	var b strings.Builder
	b.WriteString("Review the provided legal document.\n\n")
	b.WriteString("Use the connected tools to:\n")
	b.WriteString("1. Identify clause types\n")
	b.WriteString("2. Assess compliance risk\n")
	b.WriteString("3. Estimate legal complexity\n")
	if withRetrieval {
		b.WriteString("4. Retrieve relevant legal references\n")
		b.WriteString("\nThen produce a grounded legal summary with references.\n")
	} else {
		b.WriteString("\nThen produce a grounded legal summary.\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("- " + NoFabricationRule + "\n")
	b.WriteString("- Base all findings strictly on the document content")
	if withRetrieval {
		b.WriteString(" and the retrieved references.\n")
		b.WriteString("- Cite retrieved references explicitly.\n")
	} else {
		b.WriteString(".\n")
	}
	b.WriteString("- Report the overall Risk Level (High / Medium / Low) and Complexity (Low / Medium / High).\n")
	return b.String()
}

// SeedMessage is the user message that opens a review thread.
func SeedMessage(document, references string) string {
	document = strings.TrimSpace(document)
	references = strings.TrimSpace(references)
	if references == "" {
		return document
	}
	return "Legal document:\n\n" + document + "\n\nReference material:\n\n" + references
}
