package reconcile

import (
	"context"
	"encoding/json"
	"time"
)

// EmbeddingAdapter generates vector embeddings from text (spec §6, C2).
// When provided via WithEmbeddingProvider, replaces the auto-detected
// OpenAI/noop provider. Uses []float32 (not pgvector.Vector) to avoid
// forcing the pgvector dependency on external consumers — New() wraps it
// in an adapter for internal use.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// LLMAdapter performs schema-constrained structured completion (spec §6,
// C6/C7's shared adapter contract): "complete_structured(prompt, schema,
// {deadline, max_tokens}) → JSON matching schema". When provided via
// WithLLMAdapter, replaces the auto-detected OpenAI/Anthropic/noop adapter.
type LLMAdapter interface {
	CompleteStructured(ctx context.Context, prompt string, schema json.RawMessage, deadline time.Duration, maxTokens int) (json.RawMessage, error)
}

// Matcher queries the Legal Clause Library for the top-N candidates
// nearest a clause embedding (spec §6, C3's adapter contract). When
// provided via WithMatcher, replaces the auto-detected Qdrant/Postgres
// matcher.
type Matcher interface {
	TopN(ctx context.Context, tenantID string, embedding []float32, clauseType string, n int) ([]LibraryCandidate, error)
}

// LibraryCandidate is a single library-clause match with its similarity
// score, as returned by a public Matcher implementation.
type LibraryCandidate struct {
	LibraryClauseID string
	ClauseID        string
	ClauseType      string
	StandardText    string
	RiskLevel       string
	Similarity      float32
}
