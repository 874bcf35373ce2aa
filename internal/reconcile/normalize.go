// Package reconcile implements the core matching, pairing, identity
// resolution, RAG composition, and orchestration components (C4-C5, C8-C10)
// of the reconciliation engine.
package reconcile

import "github.com/clauseguard/reconcile/internal/model"

// ClauseTypeNormalizer centralizes the single normalization rule every
// component applies before comparing clause types or keyword-matching
// against them (spec §4.4, §9 supplement: normalization previously lived
// independently in C3/C4/C5 and drifted; consolidated here).
type ClauseTypeNormalizer struct{}

// Normalize lowercases and replaces underscores with spaces.
func (ClauseTypeNormalizer) Normalize(clauseType string) string {
	return model.NormalizeClauseType(clauseType)
}

// Matches reports whether two clause types are equal after normalization.
func (n ClauseTypeNormalizer) Matches(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}

// MatchesAny reports whether clauseType (after normalization) equals any of
// the given candidates (each normalized before comparison).
func (n ClauseTypeNormalizer) MatchesAny(clauseType string, candidates []string) bool {
	normalized := n.Normalize(clauseType)
	for _, c := range candidates {
		if n.Normalize(c) == normalized {
			return true
		}
	}
	return false
}
