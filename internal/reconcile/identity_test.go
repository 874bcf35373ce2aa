package reconcile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/clauseguard/reconcile/internal/model"
)

func strPtr(s string) *string { return &s }

func TestResolveIdentityExactInClause(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Brand Name", ExpectedValue: strPtr("Acme Corp"), IsMandatory: true}
	result := ResolveIdentity(pat, "This agreement is between Acme Corp and the Talent.", "full contract text")
	assert.Equal(t, IdentityExact, result.MatchType)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, model.RAGGreen, result.RAGParsing)
}

func TestResolveIdentityExactInFullTextOnly(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Talent Name", ExpectedValue: strPtr("Jane Doe"), IsMandatory: true}
	result := ResolveIdentity(pat, "This clause never mentions the talent.", "Parties: Jane Doe and Acme Corp.")
	assert.Equal(t, IdentityExact, result.MatchType)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, model.RAGGreen, result.RAGParsing)
}

func TestResolveIdentityPartialMatch(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Agency", ExpectedValue: strPtr("Big Talent Agency LLC"), IsMandatory: false}
	// 3 of 4 words longer than 2 chars appear ("big", "talent", "agency"; "llc" missing) = 0.75 >= 0.70.
	result := ResolveIdentity(pat, "irrelevant clause content", "Represented by Big Talent Agency in all matters.")
	assert.Equal(t, IdentityPartial, result.MatchType)
	assert.InDelta(t, 0.75*0.8, result.Confidence, 0.001)
	assert.Equal(t, model.RAGAmber, result.RAGParsing)
}

func TestResolveIdentityAbsentMandatoryIsRed(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Client Name", ExpectedValue: strPtr("Nonexistent Party"), IsMandatory: true}
	result := ResolveIdentity(pat, "clause text", "full text with no match")
	assert.Equal(t, IdentityAbsent, result.MatchType)
	assert.Equal(t, model.RAGRed, result.RAGParsing)
}

func TestResolveIdentityAbsentNonMandatoryIsAmber(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Influencer", ExpectedValue: strPtr("Nonexistent Party"), IsMandatory: false}
	result := ResolveIdentity(pat, "clause text", "full text with no match")
	assert.Equal(t, IdentityAbsent, result.MatchType)
	assert.Equal(t, model.RAGAmber, result.RAGParsing)
}

func TestResolveIdentityTreatsEmptyWhitespaceAndNAAsAbsent(t *testing.T) {
	for _, v := range []string{"", "   ", "N/A", "n/a"} {
		pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Brand", ExpectedValue: strPtr(v), IsMandatory: true}
		result := ResolveIdentity(pat, "anything", "anything")
		assert.Equal(t, IdentityAbsent, result.MatchType, "value=%q", v)
		assert.Equal(t, 0.0, result.Confidence)
	}
}

func TestResolveIdentityNilExpectedValueIsAbsent(t *testing.T) {
	pat := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Company", ExpectedValue: nil, IsMandatory: false}
	result := ResolveIdentity(pat, "anything", "anything")
	assert.Equal(t, IdentityAbsent, result.MatchType)
	assert.Equal(t, model.RAGAmber, result.RAGParsing)
}
