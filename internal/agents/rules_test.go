package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRulesFindsIndemnity(t *testing.T) {
	hits := MatchRules("The Supplier shall indemnify and hold harmless the Buyer.")
	require.NotEmpty(t, hits)
	assert.Equal(t, "liability.indemnity", hits[0].RuleKey)
}

func TestMatchRulesOneHitPerRule(t *testing.T) {
	hits := MatchRules("Supplier shall indemnify the Buyer and indemnify its affiliates.")
	count := 0
	for _, h := range hits {
		if h.RuleKey == "liability.indemnity" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMatchRulesMultipleRules(t *testing.T) {
	hits := MatchRules("This agreement will automatically renew unless terminated. Payment is due on invoice. Unlimited liability applies.")
	keys := make(map[string]bool)
	for _, h := range hits {
		keys[h.RuleKey] = true
	}
	assert.True(t, keys["auto.renewal"])
	assert.True(t, keys["payment.terms"])
	assert.True(t, keys["liability.uncapped"])
}

func TestMatchRulesNoHits(t *testing.T) {
	assert.Empty(t, MatchRules("The parties shall meet quarterly to review progress."))
}
