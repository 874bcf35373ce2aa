package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauseguard/reconcile/internal/model"
	"github.com/clauseguard/reconcile/internal/search"
)

func TestSimilarityRAGParsingThresholds(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, model.RAGRed, similarityRAGParsing(0.99, false, cfg), "no template match is always red")
	assert.Equal(t, model.RAGGreen, similarityRAGParsing(cfg.GreenSimilarityThreshold, true, cfg))
	assert.Equal(t, model.RAGAmber, similarityRAGParsing(cfg.AmberSimilarityFloor, true, cfg))
	assert.Equal(t, model.RAGRed, similarityRAGParsing(cfg.AmberSimilarityFloor-0.01, true, cfg))
}

func TestMoreSevereRAGOrdering(t *testing.T) {
	assert.True(t, moreSevereRAG(model.RAGRed, model.RAGAmber))
	assert.True(t, moreSevereRAG(model.RAGAmber, model.RAGGreen))
	assert.False(t, moreSevereRAG(model.RAGGreen, model.RAGRed))
	assert.False(t, moreSevereRAG(model.RAGAmber, model.RAGAmber))
}

// TestBuildResultFoldsWorstIdentitySignal is the spec's seed scenario #4
// (identity missing mandatory): a clause with a green template match but an
// absent mandatory identity PAT must still end up red overall, because the
// identity resolution's rag_parsing dominates the similarity-derived one.
func TestBuildResultFoldsWorstIdentitySignal(t *testing.T) {
	o := &Orchestrator{cfg: testConfig()}
	st := &clauseState{
		boundary: model.ClauseBoundary{ID: uuid.New(), ClauseType: "brand_identification", Content: "Acme Corp agrees..."},
		topMatch: &search.Candidate{LibraryClauseID: uuid.New(), ClauseID: "LCL-1", ClauseType: "brand_identification"},
		similarityScore: 0.95,
		identityResults: []IdentityResult{
			{TermCategory: "Brand Name", MatchType: IdentityAbsent, RAGParsing: model.RAGRed},
		},
	}

	result := o.buildResult(uuid.New(), st, uuid.New())
	assert.Equal(t, model.RAGRed, result.RAGParsing)
	assert.Equal(t, model.RAGRed, result.RAGStatus)
}

// TestBuildResultGreenPathWhenEverythingAgrees is the spec's seed scenario #1
// (payment happy path): green template match, all comparisons green, no
// direction mismatch composes to an overall green.
func TestBuildResultGreenPathWhenEverythingAgrees(t *testing.T) {
	cfg := testConfig()
	o := &Orchestrator{cfg: cfg}
	st := &clauseState{
		boundary:        model.ClauseBoundary{ID: uuid.New(), ClauseType: "payment_terms"},
		topMatch:        &search.Candidate{LibraryClauseID: uuid.New(), ClauseID: "LCL-PAY"},
		similarityScore: cfg.GreenSimilarityThreshold,
		comparisons: []model.PreAgreedComparison{
			{PATID: uuid.New(), TermCategory: "Payment Terms", Matches: true, Severity: model.SeverityNone},
		},
	}

	result := o.buildResult(uuid.New(), st, uuid.New())
	assert.Equal(t, model.RAGGreen, result.RAGParsing)
	assert.Equal(t, model.RAGGreen, result.RAGRisk)
	assert.Equal(t, model.RAGGreen, result.RAGStatus)
}

// TestBuildResultDirectionMismatchDowngradesGreenToAmber is the spec's seed
// scenario #3 (direction downgrade): an otherwise all-green clause with a
// direction mismatch must downgrade to amber, never stay green.
func TestBuildResultDirectionMismatchDowngradesGreenToAmber(t *testing.T) {
	cfg := testConfig()
	o := &Orchestrator{cfg: cfg}
	st := &clauseState{
		boundary:        model.ClauseBoundary{ID: uuid.New(), ClauseType: "intellectual_property"},
		topMatch:        &search.Candidate{LibraryClauseID: uuid.New(), ClauseID: "LCL-IP"},
		similarityScore: cfg.GreenSimilarityThreshold,
		directionValidation: &model.DirectionValidation{
			DirectionMatch:    false,
			ContractDirection: model.DirectionBrandToTalent,
			LibraryDirection:  model.DirectionTalentToBrand,
		},
	}

	result := o.buildResult(uuid.New(), st, uuid.New())
	assert.Equal(t, model.RAGAmber, result.RAGStatus)
}

func TestClauseDiscrepanciesCoversNonMatchesAndAbsentIdentity(t *testing.T) {
	patID := uuid.New()
	st := &clauseState{
		boundary: model.ClauseBoundary{ID: uuid.New()},
		comparisons: []model.PreAgreedComparison{
			{PATID: patID, TermCategory: "Exclusivity", Matches: false, Severity: model.SeverityMajor},
			{PATID: uuid.New(), TermCategory: "Payment Terms", Matches: false, Severity: model.SeverityMajor, ReasonCode: "llm_parse_error"},
			{PATID: uuid.New(), TermCategory: "Deliverables", Matches: true},
		},
		identityResults: []IdentityResult{
			{TermCategory: "Brand Name", MatchType: IdentityAbsent},
			{TermCategory: "Talent Name", MatchType: IdentityExact},
		},
	}

	discs := clauseDiscrepancies(uuid.New(), st)
	require.Len(t, discs, 3) // 2 non-matching comparisons + 1 absent identity, matched ones excluded

	var sawConflicting, sawMissingLLM, sawMissingIdentity bool
	for _, d := range discs {
		switch {
		case d.TermCategory == "Exclusivity" && d.Type == model.DiscrepancyConflicting:
			sawConflicting = true
		case d.TermCategory == "Payment Terms" && d.Type == model.DiscrepancyMissing:
			sawMissingLLM = true
		case d.TermCategory == "Brand Name" && d.Type == model.DiscrepancyMissing:
			sawMissingIdentity = true
		}
	}
	assert.True(t, sawConflicting)
	assert.True(t, sawMissingLLM)
	assert.True(t, sawMissingIdentity)
}

// TestBuildMandatoryReportGroupsByCategoryAcrossDuplicatePATs covers the
// spec's allowance for multiple PATs sharing one term_category (§3): a
// category with two PATs, only one matched anywhere, is still satisfied.
func TestBuildMandatoryReportGroupsByCategoryAcrossDuplicatePATs(t *testing.T) {
	o := &Orchestrator{}
	dealID := uuid.New()
	pats := []model.PreAgreedTerm{
		{ID: uuid.New(), DealID: dealID, TermCategory: "Payment Terms", IsMandatory: true},
		{ID: uuid.New(), DealID: dealID, TermCategory: "Payment Terms", IsMandatory: true},
		{ID: uuid.New(), DealID: dealID, TermCategory: "Exclusivity", IsMandatory: true},
	}

	matched := NewMatchedCategorySet()
	matched.AddBatchResults([]model.PreAgreedComparison{{TermCategory: "Payment Terms", Matches: true}})

	missing, discs := o.buildMandatoryReport(pats, matched, uuid.New())
	require.Len(t, missing, 1)
	assert.Equal(t, "Exclusivity", missing[0].TermCategory)
	require.Len(t, discs, 1)
	assert.Nil(t, discs[0].ClauseBoundaryID)
}
