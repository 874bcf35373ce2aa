package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clauseguard/reconcile/internal/config"
	"github.com/clauseguard/reconcile/internal/llm"
	"github.com/clauseguard/reconcile/internal/model"
)

// ComparisonPair is one (clause, PAT) pair queued for C6 batch comparison —
// everything outside the identity category, per spec §4.6.
type ComparisonPair struct {
	ClauseBoundaryID uuid.UUID
	PATID            uuid.UUID
	TermCategory     string
	Method           model.PairingMethod
	ClauseContent    string
	PATValue         string // term_description / expected_value text to compare against.
}

// batchPromptItem is the per-pair unit embedded in the LLM prompt; Idx is
// assigned by BuildBatches and is the only way a response entry maps back
// to its ComparisonPair.
type batchPromptItem struct {
	Idx           int    `json:"idx"`
	TermCategory  string `json:"term_category"`
	PATValue      string `json:"pat_value"`
	ClauseContent string `json:"clause_content"`
	Truncated     bool   `json:"-"`
}

// Batch is one group of pairs sized to fit the configured batch budget.
type Batch struct {
	Pairs []ComparisonPair
	Items []batchPromptItem
}

// BuildBatches groups pairs into batches no larger than cfg.LLMBatchMaxPairs
// pairs and cfg.LLMBatchMaxChars characters, truncating any single pair's
// clause content to cfg.LLMPairMaxChars first (spec §4.6). A pair that
// still doesn't fit an otherwise-empty batch is placed alone — truncation
// guarantees it fits within its own per-pair budget.
func BuildBatches(pairs []ComparisonPair, cfg config.Config) []Batch {
	var batches []Batch
	var current Batch
	currentChars := 0

	flush := func() {
		if len(current.Pairs) > 0 {
			batches = append(batches, current)
			current = Batch{}
			currentChars = 0
		}
	}

	for _, p := range pairs {
		content, truncated := truncatePairContent(p.ClauseContent, cfg.LLMPairMaxChars)
		item := batchPromptItem{
			Idx: len(current.Pairs), TermCategory: p.TermCategory,
			PATValue: p.PATValue, ClauseContent: content, Truncated: truncated,
		}
		itemChars := len(item.TermCategory) + len(item.PATValue) + len(item.ClauseContent)

		if len(current.Pairs) >= cfg.LLMBatchMaxPairs || (len(current.Pairs) > 0 && currentChars+itemChars > cfg.LLMBatchMaxChars) {
			flush()
			item.Idx = 0
		}

		current.Pairs = append(current.Pairs, p)
		current.Items = append(current.Items, item)
		currentChars += itemChars
	}
	flush()
	return batches
}

// truncatePairContent truncates clause content to maxChars at a sentence
// boundary, delegating to the llm package's shared truncation helper.
func truncatePairContent(content string, maxChars int) (string, bool) {
	return llm.TruncateToChars(content, maxChars)
}

// CompareBatch dispatches one batch to the adapter and returns one
// PreAgreedComparison per pair, in the same order as batch.Pairs. A pair
// whose idx is absent from an otherwise parseable response is synthesized
// as a degraded result (matches=false, severity=major, confidence=0,
// reason_code="llm_response_incomplete"). If the adapter call fails or the
// response does not parse (including an entry with ill-typed fields), the
// call is retried once; a second failure degrades every pair in the batch
// to matches=false, severity=minor, confidence=0,
// reason_code="llm_parse_error". Either way the batch itself never returns
// an error — spec §4.6's defensive-parsing requirement,
// grounded on the teacher's ParseValidatorResponse fail-safe philosophy
// (internal/conflicts/validator.go).
func CompareBatch(ctx context.Context, adapter llm.Adapter, batch Batch, cfg config.Config) ([]model.PreAgreedComparison, error) {
	if len(batch.Pairs) == 0 {
		return nil, nil
	}

	prompt, schema := buildBatchPrompt(batch.Items)
	opts := llm.CompletionOptions{Deadline: cfg.LLMBatchTimeout, MaxTokens: 4096}

	raw, err := adapter.CompleteStructured(ctx, prompt, schema, opts)
	parsed, parseErr := parseBatchResponse(raw, err)
	if parseErr != nil {
		// One retry before degrading the whole batch, per spec §4.10's
		// adapter-retry-then-degrade discipline.
		raw, err = adapter.CompleteStructured(ctx, prompt, schema, opts)
		parsed, parseErr = parseBatchResponse(raw, err)
	}

	results := make([]model.PreAgreedComparison, len(batch.Pairs))
	byIdx := make(map[int]batchResponseItemView)
	if parseErr == nil {
		for _, r := range parsed {
			byIdx[r.Idx] = r
		}
	}

	for i, pair := range batch.Pairs {
		comparison := model.PreAgreedComparison{
			PATID: pair.PATID, TermCategory: pair.TermCategory, Method: pair.Method,
			Truncated: batch.Items[i].Truncated,
		}
		r, ok := byIdx[i]
		switch {
		case parseErr != nil:
			comparison.Matches = false
			comparison.Severity = model.SeverityMinor
			comparison.Confidence = 0
			comparison.ReasonCode = "llm_parse_error"
		case !ok:
			comparison.Matches = false
			comparison.Severity = model.SeverityMajor
			comparison.Confidence = 0
			comparison.ReasonCode = "llm_response_incomplete"
		default:
			comparison.Matches = r.Matches
			comparison.Severity = r.Severity
			comparison.RiskSummary = r.RiskSummary
			comparison.Differences = r.Differences
			comparison.Confidence = r.Confidence
		}
		results[i] = comparison
	}
	return results, nil
}

// batchResponseItemView is the validated, model-typed projection of one raw
// entry of the response's "results" array (see parseBatchResponse), after
// severity normalization.
type batchResponseItemView struct {
	Idx         int
	Matches     bool
	Severity    model.Severity
	RiskSummary string
	Differences []string
	Confidence  float64
}

func parseBatchResponse(raw json.RawMessage, callErr error) ([]batchResponseItemView, error) {
	if callErr != nil {
		return nil, fmt.Errorf("reconcile: batch comparator call failed: %w", callErr)
	}
	var resp struct {
		Results []struct {
			Idx         int      `json:"idx"`
			Matches     bool     `json:"matches"`
			Severity    string   `json:"severity"`
			RiskSummary string   `json:"risk_summary"`
			Differences []string `json:"differences"`
			Confidence  float64  `json:"confidence"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("reconcile: batch comparator response: %w", err)
	}

	out := make([]batchResponseItemView, 0, len(resp.Results))
	for _, r := range resp.Results {
		severity := model.Severity(r.Severity)
		switch severity {
		case model.SeverityNone, model.SeverityMinor, model.SeverityMajor:
		default:
			severity = model.SeverityMajor
		}
		out = append(out, batchResponseItemView{
			Idx: r.Idx, Matches: r.Matches, Severity: severity,
			RiskSummary: r.RiskSummary, Differences: r.Differences, Confidence: r.Confidence,
		})
	}
	return out, nil
}

func buildBatchPrompt(items []batchPromptItem) (string, json.RawMessage) {
	payload, _ := json.Marshal(items)
	prompt := fmt.Sprintf(`You are comparing contract clauses against pre-agreed commercial terms.

For each entry in the following JSON array, decide whether the clause content satisfies the pre-agreed term (pat_value) for the stated term_category. Respond with a JSON object: {"results": [{"idx": <int>, "matches": <bool>, "severity": "none"|"minor"|"major", "risk_summary": "<one sentence>", "differences": ["..."], "confidence": <0-1>}]}. Include exactly one result per idx present in the input. severity reflects the commercial risk of any mismatch: "major" for a clause that contradicts or omits the pre-agreed term, "minor" for a wording difference without commercial impact, "none" for a clean match.

Entries:
%s`, string(payload))
	return prompt, llm.BatchComparisonSchema()
}
