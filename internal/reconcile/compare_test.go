package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauseguard/reconcile/internal/config"
	"github.com/clauseguard/reconcile/internal/llm"
	"github.com/clauseguard/reconcile/internal/model"
)

type fakeAdapter struct {
	responses []json.RawMessage
	errs      []error
	calls     int
}

func (f *fakeAdapter) CompleteStructured(_ context.Context, _ string, _ json.RawMessage, _ llm.CompletionOptions) (json.RawMessage, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp json.RawMessage
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func testConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestBuildBatchesRespectsMaxPairs(t *testing.T) {
	cfg := testConfig()
	cfg.LLMBatchMaxPairs = 2
	cfg.LLMBatchMaxChars = 100000

	pairs := make([]ComparisonPair, 5)
	for i := range pairs {
		pairs[i] = ComparisonPair{PATID: uuid.New(), TermCategory: "payment", ClauseContent: "short clause", PATValue: "net 30"}
	}

	batches := BuildBatches(pairs, cfg)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Pairs, 2)
	assert.Len(t, batches[1].Pairs, 2)
	assert.Len(t, batches[2].Pairs, 1)
}

func TestBuildBatchesTruncatesOversizedPairContent(t *testing.T) {
	cfg := testConfig()
	cfg.LLMPairMaxChars = 20

	longContent := "This is a very long clause. It goes on and on well past the limit."
	pairs := []ComparisonPair{{PATID: uuid.New(), TermCategory: "payment", ClauseContent: longContent, PATValue: "net 30"}}

	batches := BuildBatches(pairs, cfg)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Items, 1)
	assert.True(t, batches[0].Items[0].Truncated)
	assert.LessOrEqual(t, len(batches[0].Items[0].ClauseContent), 20)
}

func TestCompareBatchHappyPath(t *testing.T) {
	patID := uuid.New()
	batch := Batch{
		Pairs: []ComparisonPair{{PATID: patID, TermCategory: "payment", Method: model.PairingKeyword, ClauseContent: "clause"}},
		Items: []batchPromptItem{{Idx: 0, TermCategory: "payment", ClauseContent: "clause"}},
	}
	resp, _ := json.Marshal(map[string]any{
		"results": []map[string]any{{"idx": 0, "matches": true, "severity": "none", "confidence": 0.9}},
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	results, err := CompareBatch(context.Background(), adapter, batch, testConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Matches)
	assert.Equal(t, model.SeverityNone, results[0].Severity)
	assert.Equal(t, 1, adapter.calls)
}

func TestCompareBatchMissingIdxSynthesizesDegradedResult(t *testing.T) {
	patA, patB := uuid.New(), uuid.New()
	batch := Batch{
		Pairs: []ComparisonPair{
			{PATID: patA, TermCategory: "payment", ClauseContent: "a"},
			{PATID: patB, TermCategory: "usage", ClauseContent: "b"},
		},
		Items: []batchPromptItem{{Idx: 0}, {Idx: 1}},
	}
	resp, _ := json.Marshal(map[string]any{
		"results": []map[string]any{{"idx": 0, "matches": true, "severity": "none"}},
	})
	adapter := &fakeAdapter{responses: []json.RawMessage{resp}}

	results, err := CompareBatch(context.Background(), adapter, batch, testConfig())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Matches)
	assert.False(t, results[1].Matches)
	assert.Equal(t, model.SeverityMajor, results[1].Severity)
	assert.Equal(t, "llm_response_incomplete", results[1].ReasonCode)
}

func TestCompareBatchRetriesOnceThenDegradesWholeBatch(t *testing.T) {
	batch := Batch{
		Pairs: []ComparisonPair{{PATID: uuid.New(), TermCategory: "payment", ClauseContent: "a"}},
		Items: []batchPromptItem{{Idx: 0}},
	}
	adapter := &fakeAdapter{errs: []error{errors.New("timeout"), errors.New("timeout again")}}

	results, err := CompareBatch(context.Background(), adapter, batch, testConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matches)
	assert.Equal(t, model.SeverityMinor, results[0].Severity)
	assert.Equal(t, "llm_parse_error", results[0].ReasonCode)
	assert.Equal(t, 2, adapter.calls)
}

func TestCompareBatchRecoversOnSecondAttempt(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"results": []map[string]any{{"idx": 0, "matches": true, "severity": "minor"}},
	})
	batch := Batch{
		Pairs: []ComparisonPair{{PATID: uuid.New(), TermCategory: "payment", ClauseContent: "a"}},
		Items: []batchPromptItem{{Idx: 0}},
	}
	adapter := &fakeAdapter{
		errs:      []error{errors.New("timeout")},
		responses: []json.RawMessage{nil, resp},
	}

	results, err := CompareBatch(context.Background(), adapter, batch, testConfig())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Matches)
	assert.Equal(t, model.SeverityMinor, results[0].Severity)
}

func TestCompareBatchEmptyBatchYieldsNoResults(t *testing.T) {
	results, err := CompareBatch(context.Background(), &fakeAdapter{}, Batch{}, testConfig())
	require.NoError(t, err)
	assert.Empty(t, results)
}
