package reconcile

import "github.com/clauseguard/reconcile/internal/model"

// ComposeRAGStatus is the C8 rule table from spec §4.8 (the authoritative
// rule set), reproduced verbatim. Invariants preserved by construction:
// never double-penalize red, never upgrade an amber to green via
// direction_match=true, never produce green without both sub-scores green.
func ComposeRAGStatus(ragParsing, ragRisk model.RAGStatus, directionMismatch bool) model.RAGStatus {
	if ragParsing == model.RAGRed || ragRisk == model.RAGRed {
		return model.RAGRed
	}
	if directionMismatch {
		if ragParsing == model.RAGGreen && ragRisk == model.RAGGreen {
			return model.RAGAmber
		}
		return model.RAGRed
	}
	if ragParsing == model.RAGGreen && ragRisk == model.RAGGreen {
		return model.RAGGreen
	}
	return model.RAGAmber
}

// DeriveRAGRisk implements spec §4.7's per-clause rag_risk aggregation from
// its paired BatchResults: any major severity dominates to red, else any
// minor severity is amber, else green. A clause with no comparisons (no
// non-identity PATs paired) is green — absence of risk signal is not risk.
func DeriveRAGRisk(comparisons []model.PreAgreedComparison) model.RAGStatus {
	sawMinor := false
	for _, c := range comparisons {
		switch c.Severity {
		case model.SeverityMajor:
			return model.RAGRed
		case model.SeverityMinor:
			sawMinor = true
		}
	}
	if sawMinor {
		return model.RAGAmber
	}
	return model.RAGGreen
}
