package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter completes structured prompts against the Claude Messages
// API. Claude has no native JSON-schema response_format, so structured
// output is obtained by forcing a single tool call whose input_schema is
// the caller-supplied schema — the standard idiom for schema-constrained
// completion against this SDK.
type AnthropicAdapter struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicAdapter constructs an adapter bound to model (e.g.
// "claude-3-5-haiku-latest").
func NewAnthropicAdapter(apiKey, model string) *AnthropicAdapter {
	return &AnthropicAdapter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

const structuredToolName = "emit_structured_result"

func (a *AnthropicAdapter) CompleteStructured(ctx context.Context, prompt string, schema json.RawMessage, opts CompletionOptions) (json.RawMessage, error) {
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schema, &schemaMap); err != nil {
		return nil, fmt.Errorf("llm: anthropic adapter: invalid schema: %w", err)
	}

	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Tools: []anthropic.ToolUnionParam{
			{
				OfTool: &anthropic.ToolParam{
					Name:        structuredToolName,
					Description: anthropic.String("Emit the structured result matching the required schema."),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: schemaMap["properties"],
						Required:   toStringSlice(schemaMap["required"]),
					},
				},
			},
		},
		ToolChoice: anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: structuredToolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic adapter: completion: %w", err)
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && block.Name == structuredToolName {
			return json.RawMessage(block.Input), nil
		}
	}
	return nil, fmt.Errorf("llm: anthropic adapter: no tool_use block in response")
}

func toStringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
