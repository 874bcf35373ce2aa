package reconcile

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clauseguard/reconcile/internal/model"
)

// fakeProvider returns a fixed vector per text for deterministic semantic
// pairing tests, without hitting a real embedding API.
type fakeProvider struct {
	vectors map[string]pgvector.Vector
}

func (f fakeProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return pgvector.NewVector([]float32{0, 0, 1}), nil
}

func (f fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f fakeProvider) Dimensions() int      { return 3 }
func (f fakeProvider) ModelVersion() string { return "fake-v1" }

func TestPairRelatedClauseTypesIsAuthoritative(t *testing.T) {
	paymentPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Unrelated Label", RelatedClauseTypes: []string{"payment_terms"}}
	otherPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Completely Unrelated"}

	result, err := Pair(context.Background(), "payment_terms", pgvector.Vector{}, []model.PreAgreedTerm{paymentPAT, otherPAT}, fakeProvider{}, 0.72)
	require.NoError(t, err)
	assert.Equal(t, model.PairingRelatedClauseTypes, result.Method)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, paymentPAT.ID, result.Matched[0].PATID)
}

func TestPairKeywordFastPathRequiresBothSidesInSameEntry(t *testing.T) {
	paymentPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Payment Terms"}
	deliverablePAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Deliverable Schedule"}

	result, err := Pair(context.Background(), "payment_terms", pgvector.Vector{}, []model.PreAgreedTerm{paymentPAT, deliverablePAT}, fakeProvider{}, 0.72)
	require.NoError(t, err)
	assert.Equal(t, model.PairingKeyword, result.Method)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, paymentPAT.ID, result.Matched[0].PATID)
}

func TestPairKeywordDoesNotOverMatchOnGrantSubstring(t *testing.T) {
	// The over-matching regression this spec explicitly calls out: the keyword map
	// has no bare "grant" and keywords only match at a word start, so a PAT
	// labelled "Grantsmanship Policy" must not pair with an intellectual_property
	// clause.
	unrelatedPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Grantsmanship Policy"}
	result, err := Pair(context.Background(), "intellectual_property", pgvector.Vector{}, []model.PreAgreedTerm{unrelatedPAT}, fakeProvider{}, 0.72)
	require.NoError(t, err)
	assert.Empty(t, result.Matched)
}

func TestPairSemanticFallbackWhenNoKeywordHit(t *testing.T) {
	clauseVec := pgvector.NewVector([]float32{1, 0, 0})
	matchingPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Unusual Label One"}
	farPAT := model.PreAgreedTerm{ID: uuid.New(), TermCategory: "Unusual Label Two"}

	provider := fakeProvider{vectors: map[string]pgvector.Vector{
		"Unusual Label One": pgvector.NewVector([]float32{0.99, 0.01, 0}),
		"Unusual Label Two": pgvector.NewVector([]float32{0, 1, 0}),
	}}

	result, err := Pair(context.Background(), "obscure_clause_type", clauseVec, []model.PreAgreedTerm{matchingPAT, farPAT}, provider, 0.72)
	require.NoError(t, err)
	assert.Equal(t, model.PairingSemantic, result.Method)
	require.Len(t, result.Matched, 1)
	assert.Equal(t, matchingPAT.ID, result.Matched[0].PATID)
	require.NotNil(t, result.Matched[0].SemanticConfidence)
}

func TestPairEmptyPATListYieldsEmptyPairing(t *testing.T) {
	result, err := Pair(context.Background(), "payment_terms", pgvector.Vector{}, nil, fakeProvider{}, 0.72)
	require.NoError(t, err)
	assert.Empty(t, result.Matched)
}
