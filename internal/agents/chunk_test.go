package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("short document", 1000, 200)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short document", chunks[0])
}

func TestChunkTextRespectsSize(t *testing.T) {
	text := strings.Repeat("This is a sentence about contracts. ", 200)
	chunks := ChunkText(text, 500, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 500)
		assert.NotEmpty(t, c)
	}
}

func TestChunkTextOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 100)
	chunks := ChunkText(text, 300, 60)
	require.Greater(t, len(chunks), 1)
	// Consecutive chunks share text when overlap is on.
	tail := chunks[0][len(chunks[0])-20:]
	assert.Contains(t, chunks[1], strings.TrimSpace(tail)[:10])
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Nil(t, ChunkText("", 500, 100))
}
