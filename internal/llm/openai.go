package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAIAdapter completes structured prompts against the OpenAI Chat
// Completions API, constraining the response to the caller-supplied JSON
// schema via response_format. Grounded on the teacher's OpenAIValidator
// (internal/conflicts/validator.go) — same per-call-timeout discipline,
// swapped from raw net/http to the official SDK since structured outputs
// need schema-aware request construction the teacher's free-text validator
// never required.
type OpenAIAdapter struct {
	client openai.Client
	model  string
}

// NewOpenAIAdapter constructs an adapter bound to model (e.g. "gpt-4o-mini").
func NewOpenAIAdapter(apiKey, model string) *OpenAIAdapter {
	return &OpenAIAdapter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *OpenAIAdapter) CompleteStructured(ctx context.Context, prompt string, schema json.RawMessage, opts CompletionOptions) (json.RawMessage, error) {
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return nil, fmt.Errorf("llm: openai adapter: invalid schema: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "structured_result",
					Schema: schemaMap,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: openai adapter: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: openai adapter: no choices in response")
	}
	return json.RawMessage(resp.Choices[0].Message.Content), nil
}
