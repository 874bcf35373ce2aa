// Package model defines the core entities of the reconciliation engine:
// clause boundaries, library clauses, pre-agreed terms, match results,
// update history, and discrepancies. Structs carry JSON tags for the
// storage and adapter boundaries; the pointer-for-nullable convention marks
// fields that may be absent rather than zero-valued.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MinBoundaryConfidence is the floor below which the orchestrator skips a
// clause boundary entirely and records a parsing_quality issue instead of
// attempting reconciliation (spec §3: "orchestrator skips those where
// confidence < 0.3").
const MinBoundaryConfidence = 0.3

// ClauseBoundary is a contiguous span of contract text pre-classified as a
// single clause. It is produced upstream by PDF/OCR extraction and is
// immutable to the core — the reconciliation engine only reads it.
type ClauseBoundary struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	TenantID   uuid.UUID
	// ClauseType is lowercase snake_case, e.g. "payment_terms".
	ClauseType string
	Content    string
	Confidence float64
	StartChar  *int
	EndChar    *int
	StartPage  *int
	EndPage    *int
}

// Valid reports whether the boundary carries the minimum data the core
// requires: non-empty content. Confidence filtering is a separate,
// orchestrator-level decision (see MinBoundaryConfidence) because a
// low-confidence boundary is still well-formed, just untrusted.
func (b ClauseBoundary) Valid() bool {
	return b.Content != ""
}

// NormalizedClauseType lowercases and collapses underscores to spaces,
// matching the normalization spec §4.4 requires before keyword matching.
func (b ClauseBoundary) NormalizedClauseType() string {
	return NormalizeClauseType(b.ClauseType)
}

// ClauseUpdateHistory is an append-only audit row written whenever an
// upsert to a ClauseMatchResult is accepted (i.e. its version advances).
type ClauseUpdateHistory struct {
	ID               uuid.UUID
	ClauseResultID   uuid.UUID
	Version          int
	OldRAGStatus     *RAGStatus
	NewRAGStatus     RAGStatus
	ReasonCode       string
	RecordedAt       time.Time
}
