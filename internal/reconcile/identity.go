package reconcile

import (
	"strings"

	"github.com/clauseguard/reconcile/internal/model"
)

// IdentityMatchType classifies how (or whether) an identity PAT's expected
// value was located, per spec §4.5.
type IdentityMatchType string

const (
	IdentityExact   IdentityMatchType = "exact"
	IdentityPartial IdentityMatchType = "partial"
	IdentityAbsent  IdentityMatchType = "absent"
)

// IdentityResult is C5's output for one identity PAT.
type IdentityResult struct {
	TermCategory string
	MatchType    IdentityMatchType
	Confidence   float64
	RAGParsing   model.RAGStatus
}

// wordLengthFloor excludes short filler words ("of", "is") from the partial
// word-overlap check, per spec §4.5 ("words of length > 2").
const wordLengthFloor = 2

// partialMatchRatio is the fraction of expected-value words (length > 2)
// that must appear in the full contract text for a partial match.
const partialMatchRatio = 0.70

// partialConfidenceWeight scales the overlap ratio into a confidence score
// strictly below an exact match's 0.95 floor.
const partialConfidenceWeight = 0.8

// normalizeForIdentity lowercases and collapses runs of whitespace, the
// normalization spec §4.5 requires before any identity comparison.
func normalizeForIdentity(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// ResolveIdentity resolves a single identity PAT against a clause's content
// and the full contract text (spec §4.5). pat.HasExpectedValue() must be
// checked by the caller to decide whether the absent case needs this
// function called at all — ResolveIdentity treats a missing expected value
// as unconditionally absent.
func ResolveIdentity(pat model.PreAgreedTerm, clauseContent, fullContractText string) IdentityResult {
	result := IdentityResult{TermCategory: pat.TermCategory}

	if !pat.HasExpectedValue() {
		result.MatchType = IdentityAbsent
		result.Confidence = 0
		result.RAGParsing = absentRAGParsing(pat)
		return result
	}

	expected := normalizeForIdentity(*pat.ExpectedValue)
	normalizedClause := normalizeForIdentity(clauseContent)
	normalizedFullText := normalizeForIdentity(fullContractText)

	switch {
	case expected != "" && strings.Contains(normalizedClause, expected):
		result.MatchType = IdentityExact
		result.Confidence = 1.0
		result.RAGParsing = model.RAGGreen
		return result

	case expected != "" && strings.Contains(normalizedFullText, expected):
		result.MatchType = IdentityExact
		result.Confidence = 0.95
		result.RAGParsing = model.RAGGreen
		return result
	}

	if ratio := partialWordOverlap(expected, normalizedFullText); ratio >= partialMatchRatio {
		result.MatchType = IdentityPartial
		result.Confidence = ratio * partialConfidenceWeight
		result.RAGParsing = model.RAGAmber
		return result
	}

	result.MatchType = IdentityAbsent
	result.Confidence = 0
	result.RAGParsing = absentRAGParsing(pat)
	return result
}

// absentRAGParsing maps an unresolved identity PAT to rag_parsing: red if
// mandatory, amber otherwise (spec §4.5 step 3).
func absentRAGParsing(pat model.PreAgreedTerm) model.RAGStatus {
	if pat.IsMandatory {
		return model.RAGRed
	}
	return model.RAGAmber
}

// partialWordOverlap returns the fraction of expected's words longer than
// wordLengthFloor that appear as substrings of fullText.
func partialWordOverlap(expected, fullText string) float64 {
	words := strings.Fields(expected)
	var eligible, hits int
	for _, w := range words {
		if len(w) <= wordLengthFloor {
			continue
		}
		eligible++
		if strings.Contains(fullText, w) {
			hits++
		}
	}
	if eligible == 0 {
		return 0
	}
	return float64(hits) / float64(eligible)
}
