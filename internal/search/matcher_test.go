package search

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/clauseguard/reconcile/internal/model"
)

func TestSortCandidatesOrdersBySimilarityDescending(t *testing.T) {
	candidates := []Candidate{
		{LibraryClauseID: uuid.New(), ClauseType: "payment_terms", Similarity: 0.60},
		{LibraryClauseID: uuid.New(), ClauseType: "payment_terms", Similarity: 0.90},
		{LibraryClauseID: uuid.New(), ClauseType: "payment_terms", Similarity: 0.75},
	}
	sortCandidates(candidates, "payment_terms")
	assert.Equal(t, float32(0.90), candidates[0].Similarity)
	assert.Equal(t, float32(0.75), candidates[1].Similarity)
	assert.Equal(t, float32(0.60), candidates[2].Similarity)
}

func TestSortCandidatesPrefersMatchingClauseTypeOnTie(t *testing.T) {
	other := uuid.New()
	same := uuid.New()
	candidates := []Candidate{
		{LibraryClauseID: other, ClauseType: "termination", Similarity: 0.80},
		{LibraryClauseID: same, ClauseType: "payment_terms", Similarity: 0.80},
	}
	sortCandidates(candidates, "payment_terms")
	assert.Equal(t, same, candidates[0].LibraryClauseID)
}

func TestSortCandidatesPrefersHigherRiskOnTie(t *testing.T) {
	low := uuid.New()
	critical := uuid.New()
	candidates := []Candidate{
		{LibraryClauseID: low, ClauseType: "indemnification", RiskLevel: model.RiskLow, Similarity: 0.80},
		{LibraryClauseID: critical, ClauseType: "indemnification", RiskLevel: model.RiskCritical, Similarity: 0.80},
	}
	sortCandidates(candidates, "liability")
	assert.Equal(t, critical, candidates[0].LibraryClauseID)
}
