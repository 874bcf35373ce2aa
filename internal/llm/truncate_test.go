package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateToCharsNoOpBelowLimit(t *testing.T) {
	out, truncated := TruncateToChars("short text", 100)
	assert.Equal(t, "short text", out)
	assert.False(t, truncated)
}

func TestTruncateToCharsPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence continues past the limit and keeps going."
	out, truncated := TruncateToChars(text, 22)
	assert.True(t, truncated)
	assert.True(t, strings.HasSuffix(out, "."), "expected cut at sentence boundary, got %q", out)
}

func TestTruncateToCharsHardCutWhenNoBoundary(t *testing.T) {
	text := strings.Repeat("x", 50)
	out, truncated := TruncateToChars(text, 10)
	assert.True(t, truncated)
	assert.Equal(t, 10, len([]rune(out)))
}

func TestCountTokensNonZeroForNonEmptyString(t *testing.T) {
	assert.Greater(t, countTokens("hello world, this is a test"), 0)
}
