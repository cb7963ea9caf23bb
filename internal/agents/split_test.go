package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitClausesNumberedHeadings(t *testing.T) {
	text := `1. Definitions
In this agreement the following terms apply.

2. Payment
Buyer shall pay within 30 days of invoice.

3. Liability
Supplier's liability is unlimited.`

	clauses := SplitClauses(text)
	require.Len(t, clauses, 3)
	assert.Equal(t, "c1", clauses[0].ClauseID)
	assert.Equal(t, 1, clauses[0].OrderNo)
	assert.Equal(t, "1. Definitions", clauses[0].Title)
	assert.Contains(t, clauses[1].Text, "30 days")
	assert.Equal(t, 3, clauses[2].OrderNo)
}

func TestSplitClausesMarkdownHeadings(t *testing.T) {
	text := `## Term
This agreement runs for two years.

## Termination
Either party may terminate with 60 days notice.`

	clauses := SplitClauses(text)
	require.Len(t, clauses, 2)
	assert.Equal(t, "Term", clauses[0].Title)
	assert.Equal(t, "Termination", clauses[1].Title)
}

func TestSplitClausesChineseArticleHeadings(t *testing.T) {
	text := `第一条 合同目的
双方就服务内容达成一致。

第二条 付款方式
买方应在三十日内付款。`

	clauses := SplitClauses(text)
	require.Len(t, clauses, 2)
	assert.Contains(t, clauses[0].Title, "第一条")
}

func TestSplitClausesParagraphFallback(t *testing.T) {
	text := `This contract has no numbered structure at all.

It is just a few paragraphs of prose.

Each paragraph becomes one clause.`

	clauses := SplitClauses(text)
	require.Len(t, clauses, 3)
	assert.Empty(t, clauses[0].Title)
	assert.Equal(t, "Each paragraph becomes one clause.", clauses[2].Text)
}

func TestSplitClausesEmptyInput(t *testing.T) {
	assert.Nil(t, SplitClauses("   \n\n  "))
}
