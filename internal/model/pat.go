package model

import "github.com/google/uuid"

// PreAgreedTerm (PAT) is a deal-specific commercial or structural
// requirement the contract must honor. Multiple PATs may share a
// term_category — spec §3 explicitly permits repeats within (deal_id,
// term_category).
type PreAgreedTerm struct {
	ID               uuid.UUID
	DealID           uuid.UUID
	TermCategory     string // free-text label, e.g. "Payment Terms", "Brand Name".
	TermDescription  string
	ExpectedValue    *string
	IsMandatory      bool
	RelatedClauseTypes []string // nullable in the data model; nil or empty here means absent.
}

// IsIdentity reports whether this PAT names a contracting party and should
// bypass the LLM per C5.
func (p PreAgreedTerm) IsIdentity() bool {
	return IsIdentityCategory(p.TermCategory)
}

// HasExpectedValue reports whether ExpectedValue carries a usable value —
// spec §4.5 treats empty, whitespace-only, or "N/A" as absent without error.
func (p PreAgreedTerm) HasExpectedValue() bool {
	if p.ExpectedValue == nil {
		return false
	}
	v := trimSpaceLower(*p.ExpectedValue)
	return v != "" && v != "n/a"
}
