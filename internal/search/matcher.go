// Package search is the Library Matcher (C3): k-NN lookup of a clause's
// embedding against the active Legal Clause Library, returning ranked
// candidates with cosine scores (spec §4.3).
package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/clauseguard/reconcile/internal/model"
)

// Candidate is a single library-clause match with its similarity score.
type Candidate struct {
	LibraryClauseID uuid.UUID
	ClauseID        string
	ClauseType      string
	StandardText    string
	RiskLevel       model.RiskLevel
	Similarity      float32
}

// Matcher queries the active Legal Clause Library for the top-N candidates
// nearest a clause embedding. tenantID is accepted, but neither
// implementation in this package filters on it: the whole library is
// searched for every tenant. Ties are broken by (a) same
// clause_type preferred, (b) higher risk_level preferred (spec §4.3).
type Matcher interface {
	TopN(ctx context.Context, tenantID uuid.UUID, embedding pgvector.Vector, clauseType string, n int) ([]Candidate, error)
}

// sortCandidates orders by similarity descending, then by the clause_type/
// risk_level tie-break rule from spec §4.3.
func sortCandidates(candidates []Candidate, clauseType string) {
	less := func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		aMatch := model.NormalizeClauseType(a.ClauseType) == model.NormalizeClauseType(clauseType)
		bMatch := model.NormalizeClauseType(b.ClauseType) == model.NormalizeClauseType(clauseType)
		if aMatch != bMatch {
			return aMatch
		}
		if a.RiskLevel != b.RiskLevel {
			return model.MoreConservative(a.RiskLevel, b.RiskLevel)
		}
		return false
	}
	// Insertion sort: candidate lists are small (top-N, N=5, over-fetched by
	// a small factor), so an O(n^2) stable sort keeps this dependency-free.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
