package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauseguard/reconcile/internal/model"
)

func TestIsDirectionCandidateRequiresAllThreeConditions(t *testing.T) {
	cfg := testConfig()
	assert.True(t, IsDirectionCandidate("intellectual_property", 0.9, true, cfg))
	assert.False(t, IsDirectionCandidate("intellectual_property", 0.5, true, cfg), "below green threshold")
	assert.False(t, IsDirectionCandidate("intellectual_property", 0.9, false, cfg), "no matched template")
	assert.False(t, IsDirectionCandidate("posting_schedule", 0.9, true, cfg), "not direction-sensitive")
}

func TestValidateDirectionAgreementWhenIdentical(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"contract_direction": "talent_to_brand", "library_direction": "talent_to_brand", "confidence": 0.8,
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	result, err := ValidateDirection(context.Background(), adapter, "clause", "template", testConfig())
	require.NoError(t, err)
	assert.True(t, result.DirectionMatch)
}

func TestValidateDirectionMismatchWhenOpposed(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"contract_direction": "talent_to_brand", "library_direction": "brand_to_talent", "confidence": 0.8,
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	result, err := ValidateDirection(context.Background(), adapter, "clause", "template", testConfig())
	require.NoError(t, err)
	assert.False(t, result.DirectionMatch)
}

func TestValidateDirectionUnclearAlwaysAgrees(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"contract_direction": "unclear", "library_direction": "brand_to_talent", "confidence": 0.2,
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	result, err := ValidateDirection(context.Background(), adapter, "clause", "template", testConfig())
	require.NoError(t, err)
	assert.True(t, result.DirectionMatch)
}

func TestValidateDirectionMutualAlwaysAgrees(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"contract_direction": "mutual", "library_direction": "brand_to_talent", "confidence": 0.6,
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	result, err := ValidateDirection(context.Background(), adapter, "clause", "template", testConfig())
	require.NoError(t, err)
	assert.True(t, result.DirectionMatch)
}

func TestValidateDirectionDegradesPermissivelyOnAdapterFailure(t *testing.T) {
	adapter := &fakeAdapter{errs: []error{errors.New("down"), errors.New("still down")}}

	result, err := ValidateDirection(context.Background(), adapter, "clause", "template", testConfig())
	require.NoError(t, err)
	assert.True(t, result.DirectionMatch)
	assert.Equal(t, model.DirectionUnclear, result.ContractDirection)
	assert.Equal(t, 2, adapter.calls)
}
