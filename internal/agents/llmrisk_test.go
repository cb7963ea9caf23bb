package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precheck/internal/gateway"
	"precheck/internal/models"
)

// scriptedProvider replays canned chat outputs in order.
type scriptedProvider struct {
	outputs []string
	calls   int
}

func (p *scriptedProvider) Chat(_ context.Context, _ []gateway.ChatMessage, _ gateway.ChatOptions) (string, error) {
	if p.calls >= len(p.outputs) {
		return p.outputs[len(p.outputs)-1], nil
	}
	out := p.outputs[p.calls]
	p.calls++
	return out, nil
}

func (p *scriptedProvider) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, nil
}

func (p *scriptedProvider) Rerank(_ context.Context, _ string, _ []gateway.RerankDocument, _ int) ([]gateway.RerankResult, error) {
	return nil, nil
}

func (p *scriptedProvider) HealthCheck(_ context.Context) gateway.Health {
	return gateway.Health{Chat: true}
}

func agentsWithChat(outputs ...string) (*Agents, *scriptedProvider) {
	p := &scriptedProvider{outputs: outputs}
	return New(Deps{Gateway: gateway.NewWithProvider(p)}), p
}

var testClause = models.Clause{ClauseID: "c1", Text: "Supplier shall indemnify the Buyer without limit."}

func TestAnalyzeClauseValidFirstAttempt(t *testing.T) {
	a, p := agentsWithChat(`{"risks": [{"clause_id": "c1", "risk_level": "HIGH", "risk_type": "liability", "confidence": 0.8, "summary": "uncapped indemnity"}]}`)

	analysis, err := a.analyzeClause(context.Background(), testClause, nil, nil)
	require.NoError(t, err)
	require.Len(t, analysis.Risks, 1)
	assert.Equal(t, 1, p.calls)
}

func TestAnalyzeClauseRepairRecovers(t *testing.T) {
	a, p := agentsWithChat(
		"sorry, here is my analysis in prose",
		`{"risks": [{"clause_id": "c1", "risk_level": "MEDIUM", "risk_type": "liability", "confidence": 0.6, "summary": "broad indemnity"}]}`,
	)

	analysis, err := a.analyzeClause(context.Background(), testClause, nil, nil)
	require.NoError(t, err)
	require.Len(t, analysis.Risks, 1)
	assert.Equal(t, models.RiskMedium, models.RiskLevel(analysis.Risks[0].RiskLevel))
	assert.Equal(t, 2, p.calls)
}

func TestAnalyzeClauseTwoInvalidOutputsFail(t *testing.T) {
	a, p := agentsWithChat("not json", "still not json")

	_, err := a.analyzeClause(context.Background(), testClause, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 2, p.calls)
}
