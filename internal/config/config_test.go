package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.EmbedConcurrency)
	assert.Equal(t, 4, cfg.LLMBatchConcurrency)
	assert.Equal(t, 0.75, cfg.GreenSimilarityThreshold)
	assert.Equal(t, 0.55, cfg.AmberSimilarityFloor)
	assert.Equal(t, 0.72, cfg.SemanticPairingThreshold)
	assert.Equal(t, 12, cfg.LLMBatchMaxPairs)
	assert.True(t, cfg.ReembedEnabled)
	assert.Equal(t, 50, cfg.ReembedBatchSize)
}

func TestValidateRejectsBadReembedSettings(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.ReembedPollInterval = 0
	require.Error(t, cfg.Validate())
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("RECONCILE_EMBED_CONCURRENCY", "not-an-int")
	_, err := Load()
	require.Error(t, err)
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.AmberSimilarityFloor = cfg.GreenSimilarityThreshold
	require.Error(t, cfg.Validate())
}
