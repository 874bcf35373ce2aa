package model

import "github.com/google/uuid"

// LibraryClause is a curated, embedded standard clause — the reference
// against which contract clauses are matched (LCL = Legal Clause Library).
type LibraryClause struct {
	ID           uuid.UUID
	ClauseID     string // human-readable code, e.g. "PAY-001"; unique.
	ClauseType   string
	StandardText string
	Category     Category
	RiskLevel    RiskLevel
	Tags         []string
	// Embedding is present if and only if Active is true (spec §3 invariant).
	Embedding []float32
	// ModelVersion identifies which embedding model produced Embedding, so
	// stale vectors can be detected and re-embedded (spec §4.2).
	ModelVersion string
	Active       bool
}

// NeedsEmbedding reports whether this clause is active but either has no
// embedding yet or was embedded with a model version other than current.
func (l LibraryClause) NeedsEmbedding(currentModelVersion string) bool {
	return l.Active && (len(l.Embedding) == 0 || l.ModelVersion != currentModelVersion)
}
