package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/clauseguard/reconcile/internal/config"
	"github.com/clauseguard/reconcile/internal/llm"
	"github.com/clauseguard/reconcile/internal/model"
)

// directionSensitiveTypes is the fixed set of clause types (underscore
// stripped) for which a rights-transfer direction check applies, per spec
// §4.7.
var directionSensitiveTypes = map[string]bool{
	"intellectual property": true,
	"usage rights":          true,
	"exclusivity":           true,
	"payment terms":         true,
	"indemnification":       true,
	"license":               true,
	"grant":                 true,
	"ip rights":             true,
	"content rights":        true,
	"media rights":          true,
}

// IsDirectionCandidate reports whether a matched clause qualifies for C7
// (spec §4.7): similarity at or above the green floor, a matched template,
// and a direction-sensitive clause type.
func IsDirectionCandidate(clauseType string, similarityScore float64, matchedTemplateID bool, cfg config.Config) bool {
	if !matchedTemplateID || similarityScore < cfg.GreenSimilarityThreshold {
		return false
	}
	normalized := strings.ReplaceAll(strings.ToLower(clauseType), "_", " ")
	return directionSensitiveTypes[normalized]
}

// ValidateDirection dispatches a single direction-candidate clause/template
// pair to the adapter and composes a DirectionValidation. On adapter or
// parse failure it degrades to a permissive match (spec §4.7's fail-open
// policy: an unresolvable direction check must never itself cause a red
// status) with Reasoning recording the degradation.
func ValidateDirection(ctx context.Context, adapter llm.Adapter, clauseContent, libraryStandardText string, cfg config.Config) (model.DirectionValidation, error) {
	prompt := buildDirectionPrompt(clauseContent, libraryStandardText)
	opts := llm.CompletionOptions{Deadline: cfg.LLMDirectionTimeout, MaxTokens: 512}

	raw, err := adapter.CompleteStructured(ctx, prompt, llm.DirectionValidationSchema(), opts)
	parsed, parseErr := parseDirectionResponse(raw, err)
	if parseErr != nil {
		raw, err = adapter.CompleteStructured(ctx, prompt, llm.DirectionValidationSchema(), opts)
		parsed, parseErr = parseDirectionResponse(raw, err)
	}
	if parseErr != nil {
		return model.DirectionValidation{
			DirectionMatch:    true,
			ContractDirection: model.DirectionUnclear,
			LibraryDirection:  model.DirectionUnclear,
			Confidence:        0,
			Reasoning:         "direction validator unavailable: " + parseErr.Error(),
		}, nil
	}

	return model.DirectionValidation{
		DirectionMatch:    directionsAgree(parsed.ContractDirection, parsed.LibraryDirection),
		ContractDirection: parsed.ContractDirection,
		LibraryDirection:  parsed.LibraryDirection,
		Confidence:        parsed.Confidence,
		Reasoning:         parsed.Reasoning,
	}, nil
}

// directionsAgree implements spec §4.7's policy: either side being unclear
// is treated as agreement (insufficient signal to flag a mismatch);
// otherwise the directions must be identical, or either side mutual.
func directionsAgree(contract, library model.Direction) bool {
	if contract == model.DirectionUnclear || library == model.DirectionUnclear {
		return true
	}
	if contract == model.DirectionMutual || library == model.DirectionMutual {
		return true
	}
	return contract == library
}

type directionResponseBody struct {
	ContractDirection string  `json:"contract_direction"`
	LibraryDirection  string  `json:"library_direction"`
	Confidence        float64 `json:"confidence"`
	Reasoning         string  `json:"reasoning"`
}

type directionParsed struct {
	ContractDirection model.Direction
	LibraryDirection  model.Direction
	Confidence        float64
	Reasoning         string
}

func parseDirectionResponse(raw json.RawMessage, callErr error) (directionParsed, error) {
	if callErr != nil {
		return directionParsed{}, fmt.Errorf("reconcile: direction validator call failed: %w", callErr)
	}
	var body directionResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return directionParsed{}, fmt.Errorf("reconcile: direction validator response: %w", err)
	}

	contract := normalizeDirection(body.ContractDirection)
	library := normalizeDirection(body.LibraryDirection)
	if contract == "" || library == "" {
		return directionParsed{}, fmt.Errorf("reconcile: direction validator: unrecognized direction in response")
	}

	return directionParsed{
		ContractDirection: contract, LibraryDirection: library,
		Confidence: body.Confidence, Reasoning: body.Reasoning,
	}, nil
}

func normalizeDirection(s string) model.Direction {
	switch model.Direction(strings.ToLower(strings.TrimSpace(s))) {
	case model.DirectionTalentToBrand:
		return model.DirectionTalentToBrand
	case model.DirectionBrandToTalent:
		return model.DirectionBrandToTalent
	case model.DirectionMutual:
		return model.DirectionMutual
	case model.DirectionUnclear:
		return model.DirectionUnclear
	default:
		return ""
	}
}

func buildDirectionPrompt(clauseContent, libraryStandardText string) string {
	return fmt.Sprintf(`You are validating the direction of a rights transfer in a contract clause against a library template.

Contract clause:
%s

Library template:
%s

For EACH of the two texts above, classify the direction of the rights/obligation transfer as one of: "talent_to_brand", "brand_to_talent", "mutual", "unclear". Respond with JSON: {"contract_direction": "...", "library_direction": "...", "confidence": <0-1>, "reasoning": "<one sentence>"}.`, clauseContent, libraryStandardText)
}
