package model

import "strings"

// RAGStatus is the tri-state traffic-light judgement composed by C8.
// "blue" is declared as an additional rag_parsing value, but nothing in this
// module assigns it (a clause the orchestrator cannot score gets red
// rag_parsing); it never appears as a final rag_status.
type RAGStatus string

const (
	RAGGreen RAGStatus = "green"
	RAGAmber RAGStatus = "amber"
	RAGRed   RAGStatus = "red"
	RAGBlue  RAGStatus = "blue"
)

// Category is the LCL classification of a library clause.
type Category string

const (
	CategoryLegal            Category = "legal"
	CategoryOperational      Category = "operational"
	CategoryCreative         Category = "creative"
	CategoryFinancial        Category = "financial"
	CategoryCompliance       Category = "compliance"
	CategoryTermination      Category = "termination"
	CategoryConfidentiality  Category = "confidentiality"
	CategoryLiability        Category = "liability"
	CategoryIndemnification  Category = "indemnification"
)

// RiskLevel is the severity tier assigned to a library clause; used as a
// tiebreaker in C3 (prefer the more conservative — higher-risk — template).
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank orders RiskLevel from least to most conservative, for C3 tie-breaking.
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// MoreConservative reports whether a is a strictly higher risk tier than b.
func MoreConservative(a, b RiskLevel) bool {
	return riskRank[a] > riskRank[b]
}

// DiscrepancyType classifies a Discrepancy.
type DiscrepancyType string

const (
	DiscrepancyMissing     DiscrepancyType = "missing"
	DiscrepancyModified    DiscrepancyType = "modified"
	DiscrepancyAdditional  DiscrepancyType = "additional"
	DiscrepancyPosition    DiscrepancyType = "position"
	DiscrepancyConflicting DiscrepancyType = "conflicting"
)

// Severity grades a Discrepancy or a BatchResult's substantive risk.
type Severity string

const (
	SeverityNone  Severity = "none"
	SeverityMinor Severity = "minor"
	SeverityMajor Severity = "major"
	SeverityHigh  Severity = "high"
)

// Direction is a rights-transfer direction, used by C7's direction validator.
type Direction string

const (
	DirectionTalentToBrand Direction = "talent_to_brand"
	DirectionBrandToTalent Direction = "brand_to_talent"
	DirectionMutual        Direction = "mutual"
	DirectionUnclear       Direction = "unclear"
)

// PairingMethod records which resolution step in C4 produced a pairing.
type PairingMethod string

const (
	PairingRelatedClauseTypes PairingMethod = "related_clause_types"
	PairingKeyword            PairingMethod = "keyword"
	PairingSemantic           PairingMethod = "semantic"
)

// identityCategories is the case-insensitive set of PAT term_category values
// that name a contracting party rather than a commercial term. PATs in this
// set bypass the LLM entirely and are resolved by C5 string presence.
var identityCategories = map[string]bool{
	"brand name":      true,
	"brand":           true,
	"talent name":     true,
	"talent":          true,
	"influencer name": true,
	"influencer":      true,
	"agency":          true,
	"agency name":     true,
	"client name":     true,
	"client":          true,
	"company name":    true,
	"company":         true,
}

// IsIdentityCategory reports whether a PAT's term_category names a party,
// case-insensitive and trimmed.
func IsIdentityCategory(termCategory string) bool {
	return identityCategories[strings.ToLower(strings.TrimSpace(termCategory))]
}

// NormalizeClauseType lowercases and replaces underscores with spaces, the
// single normalization rule spec §4.4 requires before any keyword match.
func NormalizeClauseType(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", " "))
}
