package reconcile

import "github.com/clauseguard/reconcile/internal/model"

// MandatoryReportInput is one PAT's aggregated resolution evidence across
// every clause it was ever paired with in a single reconciliation run.
type MandatoryReportInput struct {
	TermCategory string
	IsMandatory  bool
	// Matched is true if any BatchResult for this PAT had matches=true, or
	// its identity resolution (if identity-category) was exact or partial.
	Matched bool
}

// MissingMandatory is one entry of C9's report: a mandatory PAT category
// with no satisfying match anywhere in the document.
type MissingMandatory struct {
	TermCategory string
	Reason       string
}

// BuildMissingMandatoryReport implements C9 (spec §4.9): a mandatory PAT is
// missing only if NO clause in the entire document satisfied it. The key
// regression-prevention property (spec's "original bug"): one green
// comparison for a category satisfies the mandate regardless of how many
// red comparisons exist elsewhere for the same category — callers must
// aggregate per-category Matched with OR across all clauses before calling
// this, never treat a single red comparison as decisive.
func BuildMissingMandatoryReport(inputs []MandatoryReportInput) []MissingMandatory {
	var missing []MissingMandatory
	for _, in := range inputs {
		if in.IsMandatory && !in.Matched {
			missing = append(missing, MissingMandatory{TermCategory: in.TermCategory, Reason: "no matching clause found"})
		}
	}
	return missing
}

// MatchedCategorySet accumulates, across every clause in a document, which
// PAT term_categories were satisfied — by a C6 BatchResult with
// matches=true, or by a non-absent C5 identity resolution (spec §4.9's
// matched_categories definition).
type MatchedCategorySet struct {
	matched map[string]bool
}

// NewMatchedCategorySet returns an empty set.
func NewMatchedCategorySet() *MatchedCategorySet {
	return &MatchedCategorySet{matched: make(map[string]bool)}
}

// AddBatchResults folds in one clause's comparison results.
func (s *MatchedCategorySet) AddBatchResults(comparisons []model.PreAgreedComparison) {
	for _, c := range comparisons {
		if c.Matches {
			s.matched[c.TermCategory] = true
		}
	}
}

// AddIdentityResult folds in one clause's identity resolution; absent
// resolutions never satisfy the mandate.
func (s *MatchedCategorySet) AddIdentityResult(result IdentityResult) {
	if result.MatchType == IdentityExact || result.MatchType == IdentityPartial {
		s.matched[result.TermCategory] = true
	}
}

// Matched reports whether termCategory was satisfied by any clause added
// so far.
func (s *MatchedCategorySet) Matched(termCategory string) bool {
	return s.matched[termCategory]
}
