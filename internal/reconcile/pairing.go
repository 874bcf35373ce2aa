package reconcile

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/clauseguard/reconcile/internal/embedding"
	"github.com/clauseguard/reconcile/internal/model"
)

// keywordEntry is one row of the fixed keyword map (spec §4.4). A pairing
// via the keyword fast path requires both the clause's normalized
// clause_type and a PAT's normalized term_category to hit keywords from the
// SAME entry.
type keywordEntry struct {
	name     string
	keywords []string
}

// keywordMap is reproduced verbatim from spec §4.4. Matching is
// word-boundary based (not substring) to avoid the over-matching bug the
// spec calls out — e.g. "ip" as a keyword under intellectual must not
// match inside unrelated words like "shipping" or "relationship".
var keywordMap = []keywordEntry{
	{"payment", []string{"payment", "fee", "compensation", "invoice", "remuneration"}},
	{"usage", []string{"usage", "rights", "license", "licensing", "utilization"}},
	{"deliverable", []string{"deliverable", "delivery", "deadline", "scope", "output"}},
	{"exclusivity", []string{"exclusivity", "exclusive", "non-compete"}},
	{"approval", []string{"approval", "approve", "review", "consent"}},
	{"confidentiality", []string{"confidential", "nda", "secret", "proprietary"}},
	{"termination", []string{"termination", "terminate", "cancel", "cancellation"}},
	{"indemnification", []string{"indemn", "liability", "warranty", "insurance"}},
	{"intellectual", []string{"intellectual", "ip", "copyright", "trademark", "ownership", "rights"}},
	{"creative", []string{"creative", "requirement", "standard", "guideline"}},
	{"posting", []string{"posting", "schedule", "publish"}},
	{"disclosure", []string{"disclosure", "ftc", "compliance"}},
	{"analytics", []string{"analytics", "metric", "report", "data"}},
}

// wordBoundaryPattern caches compiled regexes per keyword, since the same
// fixed set of ~50 keywords is matched against every clause/PAT pair for
// the lifetime of the process.
var wordBoundaryPattern = func() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, entry := range keywordMap {
		for _, kw := range entry.keywords {
			if _, ok := patterns[kw]; ok {
				continue
			}
			patterns[kw] = regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\w*\b`)
		}
	}
	return patterns
}()

// matchesEntry reports whether normalized text contains a word-boundary hit
// for any keyword in the entry. "indemn" intentionally stems (matches
// "indemnification", "indemnify") via the trailing \w* in the pattern.
func matchesEntry(entry keywordEntry, normalizedText string) bool {
	for _, kw := range entry.keywords {
		if wordBoundaryPattern[kw].MatchString(normalizedText) {
			return true
		}
	}
	return false
}

// PairedPAT is one PAT paired to a clause, with the method that produced
// the pairing.
type PairedPAT struct {
	PATID              uuid.UUID
	TermCategory       string
	Method             model.PairingMethod
	SemanticConfidence *float64
}

// PairingResult is C4's output for a single clause (spec §4.4).
type PairingResult struct {
	ClauseType string
	Matched    []PairedPAT
	Method     model.PairingMethod // method that produced Matched; zero value if Matched is empty
}

var normalizer = ClauseTypeNormalizer{}

// Pair resolves which PATs pair with a clause, short-circuiting on the
// first resolution step that yields any match (spec §4.4). clauseEmbedding
// is required only if the semantic fallback step is reached; callers that
// never reach step 3 may pass a zero-length vector.
func Pair(ctx context.Context, clauseType string, clauseEmbedding pgvector.Vector, pats []model.PreAgreedTerm, provider embedding.Provider, semanticThreshold float64) (PairingResult, error) {
	result := PairingResult{ClauseType: clauseType}
	if len(pats) == 0 {
		return result, nil
	}

	// Step 1: related_clause_types (authoritative).
	var related []PairedPAT
	for _, pat := range pats {
		if normalizer.MatchesAny(clauseType, pat.RelatedClauseTypes) {
			related = append(related, PairedPAT{PATID: pat.ID, TermCategory: pat.TermCategory, Method: model.PairingRelatedClauseTypes})
		}
	}
	if len(related) > 0 {
		result.Matched = related
		result.Method = model.PairingRelatedClauseTypes
		return result, nil
	}

	// Step 2: keyword map (fast path), clause_type vs term_category only.
	normalizedClauseType := normalizer.Normalize(clauseType)
	var clauseEntry *keywordEntry
	for i := range keywordMap {
		if matchesEntry(keywordMap[i], normalizedClauseType) {
			clauseEntry = &keywordMap[i]
			break
		}
	}
	if clauseEntry != nil {
		var keywordMatches []PairedPAT
		for _, pat := range pats {
			normalizedCategory := normalizer.Normalize(pat.TermCategory)
			if matchesEntry(*clauseEntry, normalizedCategory) {
				keywordMatches = append(keywordMatches, PairedPAT{PATID: pat.ID, TermCategory: pat.TermCategory, Method: model.PairingKeyword})
			}
		}
		if len(keywordMatches) > 0 {
			result.Matched = keywordMatches
			result.Method = model.PairingKeyword
			return result, nil
		}
	}

	// Step 3: semantic fallback — embed each remaining PAT's term_category
	// and cosine-compare against the clause embedding.
	if len(clauseEmbedding.Slice()) == 0 {
		return result, nil
	}
	var semanticMatches []PairedPAT
	for _, pat := range pats {
		patVec, err := provider.Embed(ctx, pat.TermCategory)
		if err != nil {
			return result, fmt.Errorf("reconcile: embed PAT term_category for semantic pairing: %w", err)
		}
		sim := cosineSimilarity(clauseEmbedding.Slice(), patVec.Slice())
		if sim >= semanticThreshold {
			confidence := sim
			semanticMatches = append(semanticMatches, PairedPAT{
				PATID: pat.ID, TermCategory: pat.TermCategory,
				Method: model.PairingSemantic, SemanticConfidence: &confidence,
			})
		}
	}
	if len(semanticMatches) > 0 {
		result.Matched = semanticMatches
		result.Method = model.PairingSemantic
	}
	return result, nil
}

// cosineSimilarity is grounded on the teacher's conflicts.cosineSimilarity
// helper (internal/conflicts/scorer.go), unchanged in shape.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		da, db := float64(a[i]), float64(b[i])
		dot += da * db
		normA += da * da
		normB += db * db
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
