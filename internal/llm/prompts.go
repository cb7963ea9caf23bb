package llm

import (
	"fmt"
	"strings"

	"precheck/internal/gateway"
	"precheck/internal/models"
	"precheck/internal/util"
)

const (
	maxClauseChars = 2000
	maxQuoteChars  = 500
)

const riskSystemPrompt = `You are a contract risk reviewer. Analyze the clause and respond with a single JSON object:
{"risks": [{"clause_id": string, "risk_level": "HIGH"|"MEDIUM"|"LOW"|"INFO", "risk_type": string, "confidence": number between 0 and 1, "summary": string, "suggestion": string, "contract_evidence": string, "kb_evidence": [{"chunk_id": string, "quote_text": string, "doc_title": string, "doc_version": number}]}]}
Only cite knowledge base passages that were provided to you. If the clause carries no risk, return {"risks": []}. Respond with JSON only.`

// BuildRiskAnalysisPrompt assembles the clause, rule hints and retrieved KB
// passages into the chat messages for one risk analysis call.
func BuildRiskAnalysisPrompt(clause models.Clause, hints []models.RuleHit, kbHits []models.KBHit) []gateway.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Clause %s", clause.ClauseID)
	if clause.Title != "" {
		fmt.Fprintf(&b, " (%s)", clause.Title)
	}
	fmt.Fprintf(&b, ":\n%s\n", util.TruncateText(clause.Text, maxClauseChars))

	if len(hints) > 0 {
		b.WriteString("\nRule engine hints:\n")
		for _, h := range hints {
			fmt.Fprintf(&b, "- [%s] %s\n", h.RuleKey, h.Hint)
		}
	}

	if len(kbHits) > 0 {
		b.WriteString("\nKnowledge base passages:\n")
		for _, h := range kbHits {
			fmt.Fprintf(&b, "- chunk_id=%s doc_title=%q doc_version=%d\n  %s\n",
				h.ChunkID, h.DocTitle, h.DocVersion, util.TruncateText(h.QuoteText, maxQuoteChars))
		}
	} else {
		b.WriteString("\nNo knowledge base passages were retrieved for this clause. Leave kb_evidence empty.\n")
	}

	return []gateway.ChatMessage{
		{Role: "system", Content: riskSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// BuildRepairPrompt extends a failed exchange with the validation error so the
// model can emit a corrected JSON object.
func BuildRepairPrompt(original []gateway.ChatMessage, badOutput string, validationErr error) []gateway.ChatMessage {
	out := make([]gateway.ChatMessage, len(original), len(original)+2)
	copy(out, original)
	out = append(out, gateway.ChatMessage{Role: "assistant", Content: badOutput})
	out = append(out, gateway.ChatMessage{Role: "user", Content: fmt.Sprintf(
		"Your previous answer was rejected: %s\nRespond again with only the corrected JSON object.", validationErr)})
	return out
}
