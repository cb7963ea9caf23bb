package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeTextStripsControlChars(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeText("hello\x00 world\x01"))
}

func TestSanitizeTextKeepsNewlines(t *testing.T) {
	assert.Equal(t, "a\nb", SanitizeText("a\nb"))
}

func TestTruncateTextShortInput(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
}

func TestTruncateTextRuneSafe(t *testing.T) {
	out := TruncateText("第一条第二条第三条", 5)
	assert.Equal(t, "第一条第二...", out)
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID("task")
	assert.Contains(t, id, "task_")
	assert.NotEqual(t, id, NewID("task"))
}

func TestSHA256HexStable(t *testing.T) {
	assert.Equal(t, SHA256Hex([]byte("abc")), SHA256Hex([]byte("abc")))
	assert.NotEqual(t, SHA256Hex([]byte("abc")), SHA256Hex([]byte("abd")))
}
