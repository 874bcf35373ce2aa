package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauseguard/reconcile/internal/model"
)

func TestBuildMissingMandatoryReportFlagsUnmatchedMandatoryOnly(t *testing.T) {
	inputs := []MandatoryReportInput{
		{TermCategory: "Payment Terms", IsMandatory: true, Matched: true},
		{TermCategory: "Exclusivity", IsMandatory: true, Matched: false},
		{TermCategory: "Optional Perk", IsMandatory: false, Matched: false},
	}
	missing := BuildMissingMandatoryReport(inputs)
	require.Len(t, missing, 1)
	assert.Equal(t, "Exclusivity", missing[0].TermCategory)
}

// TestOnePositiveSatisfiesMandateRegardlessOfRedCount is the spec's own
// regression scenario (§8 seed #2 / "Issue #9 regression" in §4.9): one PAT
// paired across 11 clauses, 1 match=true and 10 match=false, must NOT
// appear in missing_mandatory.
func TestOnePositiveSatisfiesMandateRegardlessOfRedCount(t *testing.T) {
	set := NewMatchedCategorySet()
	for i := 0; i < 10; i++ {
		set.AddBatchResults([]model.PreAgreedComparison{{TermCategory: "Payment Terms", Matches: false}})
	}
	set.AddBatchResults([]model.PreAgreedComparison{{TermCategory: "Payment Terms", Matches: true}})

	assert.True(t, set.Matched("Payment Terms"))

	missing := BuildMissingMandatoryReport([]MandatoryReportInput{
		{TermCategory: "Payment Terms", IsMandatory: true, Matched: set.Matched("Payment Terms")},
	})
	assert.Empty(t, missing)
}

func TestMatchedCategorySetIdentityPartialCounts(t *testing.T) {
	set := NewMatchedCategorySet()
	set.AddIdentityResult(IdentityResult{TermCategory: "Brand Name", MatchType: IdentityPartial})
	assert.True(t, set.Matched("Brand Name"))
}

func TestMatchedCategorySetIdentityAbsentDoesNotCount(t *testing.T) {
	set := NewMatchedCategorySet()
	set.AddIdentityResult(IdentityResult{TermCategory: "Brand Name", MatchType: IdentityAbsent})
	assert.False(t, set.Matched("Brand Name"))
}
