package model

import "github.com/google/uuid"

// Discrepancy is a derived record when a comparison yields matches=false or
// a mandatory PAT is missing. ClauseBoundaryID is nil for document-level
// (missing-mandatory) discrepancies — they're bound to the deal, not a clause.
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
