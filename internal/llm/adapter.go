// Package llm is the LLM Adapter (C6/C7 consumer): a narrow interface for
// structured JSON-schema completion, with concrete OpenAI and Anthropic
// implementations. Grounded on the teacher's conflicts.Validator philosophy
// (internal/conflicts/validator.go) — construct a prompt, call the
// provider, defensively parse the response, fail closed rather than
// propagate ambiguity — generalized from free-text relationship
// classification to schema-constrained JSON completion.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNoProvider is returned by NoopAdapter to signal no real LLM adapter is
// configured.
var ErrNoProvider = errors.New("llm: no provider configured (noop)")

// CompletionOptions bounds a single completion call.
type CompletionOptions struct {
	Deadline  time.Duration
	MaxTokens int
}

// Adapter is the narrow interface C6 (Batch Comparator) and C7 (Direction
// Validator) consume (spec §6: "complete_structured(prompt, schema,
// {deadline, max_tokens}) → JSON matching schema"). Implementations must
// return the raw JSON value matching schema (a JSON object for both the
// batch and direction schemas); callers are responsible
// for unmarshaling into the expected schema type and for defensive
// per-idx validation (spec §4.6).
type Adapter interface {
	CompleteStructured(ctx context.Context, prompt string, schema json.RawMessage, opts CompletionOptions) (json.RawMessage, error)
}

// NoopAdapter always returns ErrNoProvider, mirroring embedding.NoopProvider:
// callers should treat "no adapter configured" as a distinct condition from
// a transient failure, so the orchestrator's degrade-to-amber path applies
// uniformly whether the cause is missing configuration or a live outage.
type NoopAdapter struct{}

func (NoopAdapter) CompleteStructured(_ context.Context, _ string, _ json.RawMessage, _ CompletionOptions) (json.RawMessage, error) {
	return nil, ErrNoProvider
}
