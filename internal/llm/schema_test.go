package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precheck/internal/models"
)

func TestParseRiskAnalysisValid(t *testing.T) {
	raw := `{"risks": [{"clause_id": "c1", "risk_level": "HIGH", "risk_type": "liability", "confidence": 0.9, "summary": "uncapped liability", "suggestion": "add a cap", "contract_evidence": "shall be liable without limit", "kb_evidence": [{"chunk_id": "chk_1", "quote_text": "liability should be capped", "doc_title": "Playbook", "doc_version": 3}]}]}`
	analysis, err := ParseRiskAnalysis(raw)
	require.NoError(t, err)
	require.Len(t, analysis.Risks, 1)
	assert.Equal(t, "HIGH", analysis.Risks[0].RiskLevel)
	assert.Equal(t, "chk_1", analysis.Risks[0].KBEvidence[0].ChunkID)
}

func TestParseRiskAnalysisStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"risks\": []}\n```"
	analysis, err := ParseRiskAnalysis(raw)
	require.NoError(t, err)
	assert.Empty(t, analysis.Risks)
}

func TestParseRiskAnalysisRejectsMalformedJSON(t *testing.T) {
	_, err := ParseRiskAnalysis("the clause looks fine to me")
	assert.Error(t, err)
}

func TestParseRiskAnalysisRejectsBadLevel(t *testing.T) {
	raw := `{"risks": [{"clause_id": "c1", "risk_level": "CRITICAL", "risk_type": "x", "confidence": 0.5, "summary": "s"}]}`
	_, err := ParseRiskAnalysis(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "risk_level")
}

func TestParseRiskAnalysisRejectsConfidenceOutOfRange(t *testing.T) {
	raw := `{"risks": [{"clause_id": "c1", "risk_level": "LOW", "risk_type": "x", "confidence": 1.4, "summary": "s"}]}`
	_, err := ParseRiskAnalysis(raw)
	assert.Error(t, err)
}

func TestBuildRiskAnalysisPromptIncludesEvidence(t *testing.T) {
	clause := models.Clause{ClauseID: "c7", Title: "Indemnity", Text: "Supplier shall indemnify buyer."}
	hints := []models.RuleHit{{RuleKey: "indemnity.oneway", Hint: "one-way indemnity"}}
	kbHits := []models.KBHit{{ChunkID: "chk_9", DocTitle: "Playbook", DocVersion: 2, QuoteText: "indemnities should be mutual"}}

	msgs := BuildRiskAnalysisPrompt(clause, hints, kbHits)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "c7")
	assert.Contains(t, msgs[1].Content, "chk_9")
	assert.Contains(t, msgs[1].Content, "one-way indemnity")
}

func TestBuildRepairPromptAppendsExchange(t *testing.T) {
	original := BuildRiskAnalysisPrompt(models.Clause{ClauseID: "c1", Text: "t"}, nil, nil)
	_, parseErr := ParseRiskAnalysis("not json")
	require.Error(t, parseErr)

	repaired := BuildRepairPrompt(original, "not json", parseErr)
	require.Len(t, repaired, len(original)+2)
	assert.Equal(t, "assistant", repaired[len(repaired)-2].Role)
	assert.Contains(t, repaired[len(repaired)-1].Content, "rejected")
}
