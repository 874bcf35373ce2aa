package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopProviderReturnsErrNoProvider(t *testing.T) {
	p := NewNoopProvider(1536)
	_, err := p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoProvider))

	_, err = p.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
}

func TestNewOpenAIProviderRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIProvider("", "text-embedding-3-small", 1536, 100)
	require.Error(t, err)
}

func TestNewOpenAIProviderDefaults(t *testing.T) {
	p, err := NewOpenAIProvider("key", "text-embedding-3-small", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, 100, p.batchMax)
}
