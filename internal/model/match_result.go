package model

import (
	"time"

	"github.com/google/uuid"
)

// TopMatch is the library candidate C3 selected for a clause.
type TopMatch struct {
	LibraryClauseID uuid.UUID
	ClauseID        string
	ClauseType      string
	SimilarityScore float64
}

// PreAgreedComparison is one C6 (or C5 identity) comparison result attached
// to a clause, keyed by the PAT it was compared against.
type PreAgreedComparison struct {
	PATID          uuid.UUID
	TermCategory   string
	Method         PairingMethod
	Matches        bool
	Severity       Severity
	RiskSummary    string
	Differences    []string
	Confidence     float64
	Truncated      bool
	ReasonCode     string // e.g. "llm_parse_error" when synthesized per spec §4.6.
}

// DirectionValidation is C7's output for a single direction-sensitive candidate.
type DirectionValidation struct {
	DirectionMatch    bool
	ContractDirection Direction
	LibraryDirection  Direction
	Confidence        float64
	Reasoning         string
}

// GPTAnalysis is the tagged-record replacement for the dynamic JSON blob the
// original kept under `gpt_analysis` (spec §9's "dynamic JSON blobs"
// guidance): typed fields only, serialized at the storage boundary.
type GPTAnalysis struct {
	TopMatch              *TopMatch
	PreAgreedComparisons   []PreAgreedComparison
	DirectionValidation    *DirectionValidation
	Reason                 string
}

// ClauseMatchResult is the head record produced by the core for one clause
// boundary: the current reconciliation verdict plus the monotonic version
// that gates every write.
type ClauseMatchResult struct {
	ID                uuid.UUID
	DocumentID        uuid.UUID
	ClauseBoundaryID  uuid.UUID // unique: one head row per clause boundary.
	MatchedTemplateID *uuid.UUID
	SimilarityScore   float64
	RAGParsing        RAGStatus
	RAGRisk           RAGStatus
	RAGStatus         RAGStatus
	GPTAnalysis       GPTAnalysis
	// Version strictly increases per ClauseBoundaryID; an older version must
	// never overwrite a newer one (spec §3, enforced by C1's CAS upsert).
	Version           int
	PreviousRAGStatus *RAGStatus
	UpdateReason      string
	UpdatedBy         uuid.UUID
	UpdatedAt         time.Time
}

// StructurallyEqual reports whether two results differ in any field the
// spec treats as observable (ignoring UpdatedAt, UpdatedBy, Version, and
// PreviousRAGStatus/UpdateReason, which are bookkeeping, not outcome).
// Used by the orchestrator's change-detection pass (spec §4.10,
// resolving the Open Question in §9 on no-bump-on-metadata-only-change).
func (r ClauseMatchResult) StructurallyEqual(other ClauseMatchResult) bool {
	if r.RAGParsing != other.RAGParsing || r.RAGRisk != other.RAGRisk || r.RAGStatus != other.RAGStatus {
		return false
	}
	if !uuidPtrEqual(r.MatchedTemplateID, other.MatchedTemplateID) {
		return false
	}
	if r.SimilarityScore != other.SimilarityScore {
		return false
	}
	return gptAnalysisEqual(r.GPTAnalysis, other.GPTAnalysis)
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func gptAnalysisEqual(a, b GPTAnalysis) bool {
	if a.Reason != b.Reason {
		return false
	}
	if len(a.PreAgreedComparisons) != len(b.PreAgreedComparisons) {
		return false
	}
	for i := range a.PreAgreedComparisons {
		ca, cb := a.PreAgreedComparisons[i], b.PreAgreedComparisons[i]
		if ca.PATID != cb.PATID || ca.Matches != cb.Matches || ca.Severity != cb.Severity {
			return false
		}
	}
	if (a.DirectionValidation == nil) != (b.DirectionValidation == nil) {
		return false
	}
	if a.DirectionValidation != nil && b.DirectionValidation != nil {
		if a.DirectionValidation.DirectionMatch != b.DirectionValidation.DirectionMatch {
			return false
		}
	}
	return true
}

// DirectionMismatch reports whether C7 ran for this result and found a
// direction mismatch — the third input to C8's composition rule.
func (r ClauseMatchResult) DirectionMismatch() bool {
	return r.GPTAnalysis.DirectionValidation != nil && !r.GPTAnalysis.DirectionValidation.DirectionMatch
}
