// Package reconcile is the public API for embedding the reconciliation
// engine.
//
// Callers construct an App, then call Reconcile once per contract document:
//
//	app, err := reconcile.New(
//	    reconcile.WithVersion(version),
//	    reconcile.WithLogger(logger),
//	)
//	if err != nil { ... }
//	report, err := app.Reconcile(ctx, documentID, tenantID, dealID, updatedBy)
//
// The import graph enforces a strict no-cycle rule: reconcile (root)
// imports internal/*, but internal/* never imports reconcile (root).
// Public types (ClauseResult, Discrepancy, etc.) are standalone structs
// with no internal imports; conversion helpers live in clauseguard.go
// because that is the only file that sees both sides of the boundary.
package reconcile

import (
	"time"

	"github.com/google/uuid"
)

// RAGStatus is the tri-state traffic-light judgement composed by C8 and
// reported on every clause. It mirrors internal/model.RAGStatus — a
// standalone copy so callers never need to import internal packages.
type RAGStatus string

const (
	RAGGreen RAGStatus = "green"
	RAGAmber RAGStatus = "amber"
	RAGRed   RAGStatus = "red"
	RAGBlue  RAGStatus = "blue"
)

// RunStatus summarizes how a ReconciliationReport's run concluded.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial" // one or more clauses degraded or were skipped
	RunCancelled RunStatus = "cancelled"
)

// DiscrepancyType classifies a Discrepancy.
type DiscrepancyType string

const (
	DiscrepancyMissing     DiscrepancyType = "missing"
	DiscrepancyModified    DiscrepancyType = "modified"
	DiscrepancyAdditional  DiscrepancyType = "additional"
	DiscrepancyPosition    DiscrepancyType = "position"
	DiscrepancyConflicting DiscrepancyType = "conflicting"
)

// Severity grades a Discrepancy or a clause comparison's substantive risk.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
)

// TopMatch is the library template C3 matched to a clause.
type TopMatch struct {
	LibraryClauseID uuid.UUID
	ClauseID        string
	ClauseType      string
	SimilarityScore float64
}

// PreAgreedComparison is one PAT comparison result attached to a clause.
type PreAgreedComparison struct {
	PATID        uuid.UUID
	TermCategory string
	Matches      bool
	Severity     Severity
	RiskSummary  string
	Differences  []string
	Confidence   float64
	ReasonCode   string
}

// DirectionValidation is the rights-transfer direction check result for a
// direction-sensitive clause.
type DirectionValidation struct {
	DirectionMatch    bool
	ContractDirection string
	LibraryDirection  string
	Confidence        float64
	Reasoning         string
}

// ClauseResult is the public view of one clause's reconciliation verdict —
// a curated projection of internal/model.ClauseMatchResult with no
// internal imports, safe to hold outside this module.
type ClauseResult struct {
	ClauseBoundaryID     uuid.UUID
	MatchedTemplateID    *uuid.UUID
	SimilarityScore      float64
	RAGParsing           RAGStatus
	RAGRisk              RAGStatus
	RAGStatus            RAGStatus
	TopMatch             *TopMatch
	PreAgreedComparisons []PreAgreedComparison
	DirectionValidation  *DirectionValidation
	Version              int
	UpdatedAt            time.Time
}

// Discrepancy is a derived record surfaced when a comparison failed to
// match or a mandatory PAT category had no satisfying clause anywhere in
// the document. ClauseBoundaryID is nil for document-level entries.
type Discrepancy struct {
	ID               uuid.UUID
	DocumentID       uuid.UUID
	ClauseBoundaryID *uuid.UUID
	PATID            *uuid.UUID
	Type             DiscrepancyType
	Severity         Severity
	TermCategory     string
	Reason           string
}

// MissingMandatory is one entry of the missing-mandatory-PAT report: a
// mandatory term category with no satisfying clause anywhere in the
// document.
type MissingMandatory struct {
	TermCategory string
	Reason       string
}

// ReconciliationReport is the result of a single Reconcile call.
type ReconciliationReport struct {
	DocumentID       uuid.UUID
	Status           RunStatus
	GreenCount       int
	AmberCount       int
	RedCount         int
	MissingMandatory []MissingMandatory
	Warnings         []string
	Duration         time.Duration
	// VersionSnapshot maps clause_boundary_id to the version accepted (or
	// already current) for that clause at the end of this run.
	VersionSnapshot map[uuid.UUID]int
}
