package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlainText(t *testing.T) {
	res, err := Parse([]byte("Clause 1. The parties agree.\x00"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Clause 1. The parties agree.", res.Text)
}

func TestParseMarkdown(t *testing.T) {
	res, err := Parse([]byte("# Agreement\n\nSome terms."), "text/markdown")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Some terms.")
}

func TestParseUnsupportedMime(t *testing.T) {
	_, err := Parse([]byte("PK\x03\x04"), "application/zip")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMime)
}

func TestParseEmptyText(t *testing.T) {
	_, err := Parse([]byte("  \x00 "), "text/plain")
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestParseCorruptPDF(t *testing.T) {
	_, err := Parse([]byte("definitely not a pdf"), "application/pdf")
	assert.Error(t, err)
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("application/pdf"))
	assert.True(t, IsSupported("text/plain"))
	assert.False(t, IsSupported("application/msword"))
}
