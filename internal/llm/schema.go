package llm

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// BatchComparisonResult is one entry in a C6 batch-comparison response body,
// addressed back to its (clause, PAT) pair by the caller-assigned idx so a
// missing or malformed entry can be matched without relying on response
// ordering (spec §4.6).
type BatchComparisonResult struct {
	Idx         int      `json:"idx" jsonschema:"description=index of the pair this result answers, matching the prompt's idx field"`
	Matches     bool     `json:"matches" jsonschema:"description=whether the clause satisfies the pre-agreed term"`
	Severity    string   `json:"severity" jsonschema:"enum=none,enum=minor,enum=major"`
	RiskSummary string   `json:"risk_summary,omitempty"`
	Differences []string `json:"differences,omitempty" jsonschema:"description=concrete textual differences between the clause and the term"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// BatchComparisonResponse is the full C6 response shape: one result per
// pair in the batch.
type BatchComparisonResponse struct {
	Results []BatchComparisonResult `json:"results" jsonschema:"required"`
}

// DirectionValidationResponse is C7's response shape: one rights-transfer
// direction verdict for the single candidate the prompt describes.
type DirectionValidationResponse struct {
	ContractDirection string  `json:"contract_direction" jsonschema:"enum=talent_to_brand,enum=brand_to_talent,enum=mutual,enum=unclear"`
	LibraryDirection  string  `json:"library_direction" jsonschema:"enum=talent_to_brand,enum=brand_to_talent,enum=mutual,enum=unclear"`
	Confidence        float64 `json:"confidence,omitempty"`
	Reasoning         string  `json:"reasoning,omitempty"`
}

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

func mustReflect(v any) json.RawMessage {
	schema := reflector.Reflect(v)
	raw, err := json.Marshal(schema)
	if err != nil {
		panic("llm: schema reflection failed: " + err.Error())
	}
	return raw
}

var (
	batchComparisonSchema     = mustReflect(&BatchComparisonResponse{})
	directionValidationSchema = mustReflect(&DirectionValidationResponse{})
)

// BatchComparisonSchema returns the JSON schema C6 passes to
// Adapter.CompleteStructured, reflected from BatchComparisonResponse.
func BatchComparisonSchema() json.RawMessage { return batchComparisonSchema }

// DirectionValidationSchema returns the JSON schema C7 passes to
// Adapter.CompleteStructured, reflected from DirectionValidationResponse.
func DirectionValidationSchema() json.RawMessage { return directionValidationSchema }
