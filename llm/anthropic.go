// ABOUTME: Anthropic Messages API adapter implementing the LanguageModel interface.
// ABOUTME: Maps unified parts to content blocks, including tool use, images, and extended thinking.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicModel implements LanguageModel for the Anthropic Messages API.
type AnthropicModel struct {
	client   anthropic.Client
	modelID  string
	metadata *LanguageModelMetadata
}

// AnthropicOption is a functional option for configuring an AnthropicModel.
type AnthropicOption func(*anthropicConfig)

type anthropicConfig struct {
	baseURL  string
	metadata *LanguageModelMetadata
}

// WithAnthropicBaseURL overrides the API base URL.
func WithAnthropicBaseURL(url string) AnthropicOption {
	return func(c *anthropicConfig) {
		c.baseURL = url
	}
}

// WithAnthropicMetadata overrides the catalog metadata for this model.
func WithAnthropicMetadata(metadata *LanguageModelMetadata) AnthropicOption {
	return func(c *anthropicConfig) {
		c.metadata = metadata
	}
}

// NewAnthropicModel creates an Anthropic adapter for the given model id.
func NewAnthropicModel(apiKey, modelID string, opts ...AnthropicOption) *AnthropicModel {
	cfg := &anthropicConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	metadata := cfg.metadata
	if metadata == nil {
		metadata = LookupModelMetadata(modelID)
	}

	return &AnthropicModel{
		client:   anthropic.NewClient(reqOpts...),
		modelID:  modelID,
		metadata: metadata,
	}
}

func (m *AnthropicModel) Provider() string                 { return "anthropic" }
func (m *AnthropicModel) ModelID() string                  { return m.modelID }
func (m *AnthropicModel) Metadata() *LanguageModelMetadata { return m.metadata }

// Generate performs a blocking Messages API call.
func (m *AnthropicModel) Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error) {
	params, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapAnthropicError(err)
	}
	if message.StopReason == "refusal" {
		return nil, NewRefusalError("model stopped with refusal")
	}

	var content []Part
	for _, block := range message.Content {
		switch block.Type {
		case "text":
			content = append(content, NewTextPart(block.Text))
		case "tool_use":
			toolUse := block.AsToolUse()
			content = append(content, NewToolCallPart(toolUse.ID, toolUse.Name, toolUse.Input))
		case "thinking":
			thinking := block.AsThinking()
			content = append(content, NewReasoningPart(thinking.Thinking, thinking.Signature))
		default:
			return nil, NewInvariantError(m.Provider(),
				fmt.Sprintf("unexpected content block type %q", block.Type))
		}
	}

	usage := convertAnthropicUsage(message.Usage.InputTokens, message.Usage.OutputTokens,
		message.Usage.CacheReadInputTokens)
	resp := &ModelResponse{Content: content, Usage: usage}
	if m.metadata != nil && m.metadata.Pricing != nil {
		resp.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
	}
	return resp, nil
}

// Stream performs a streaming Messages API call. Anthropic supplies an
// authoritative content block index on every event, so no index guessing is
// needed.
func (m *AnthropicModel) Stream(ctx context.Context, input *LanguageModelInput) (<-chan StreamEvent, error) {
	params, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}

	stream := m.client.Messages.NewStreaming(ctx, params)
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			event := stream.Current()
			switch event.Type {
			case "message_start":
				messageStart := event.AsMessageStart()
				usage := convertAnthropicUsage(messageStart.Message.Usage.InputTokens, 0,
					messageStart.Message.Usage.CacheReadInputTokens)
				if !emit(StreamEvent{Partial: &PartialModelResponse{Usage: usage}}) {
					return
				}

			case "content_block_start":
				blockStart := event.AsContentBlockStart()
				if blockStart.ContentBlock.Type == "tool_use" {
					toolUse := blockStart.ContentBlock.AsToolUse()
					delta := ContentDelta{
						Index: int(blockStart.Index),
						Part:  NewToolCallPartDelta(toolUse.ID, toolUse.Name, ""),
					}
					if !emit(StreamEvent{Partial: &PartialModelResponse{Delta: &delta}}) {
						return
					}
				}

			case "content_block_delta":
				blockDelta := event.AsContentBlockDelta()
				var part PartDelta
				switch blockDelta.Delta.Type {
				case "text_delta":
					part = NewTextPartDelta(blockDelta.Delta.Text)
				case "input_json_delta":
					part = NewToolCallPartDelta("", "", blockDelta.Delta.PartialJSON)
				case "thinking_delta":
					part = NewReasoningPartDelta(blockDelta.Delta.Thinking)
				case "signature_delta":
					part = PartDelta{Type: PartDeltaTypeReasoning, Reasoning: &ReasoningPartDelta{
						Signature: blockDelta.Delta.Signature,
					}}
				default:
					continue
				}
				delta := ContentDelta{Index: int(blockDelta.Index), Part: part}
				if !emit(StreamEvent{Partial: &PartialModelResponse{Delta: &delta}}) {
					return
				}

			case "message_delta":
				messageDelta := event.AsMessageDelta()
				usage := convertAnthropicUsage(0, messageDelta.Usage.OutputTokens, 0)
				partial := &PartialModelResponse{Usage: usage}
				if m.metadata != nil && m.metadata.Pricing != nil {
					partial.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
				}
				if !emit(StreamEvent{Partial: partial}) {
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: mapAnthropicError(err)}
		}
	}()

	return events, nil
}

// convertInput translates a LanguageModelInput into Messages API params.
func (m *AnthropicModel) convertInput(input *LanguageModelInput) (anthropic.MessageNewParams, error) {
	maxTokens := anthropicDefaultMaxTokens
	if input.MaxTokens != nil {
		maxTokens = *input.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.modelID),
		MaxTokens: int64(maxTokens),
	}

	for _, modality := range input.Modalities {
		if modality == ModalityAudio {
			return params, NewUnsupportedError(m.Provider(), "audio output is not supported")
		}
	}
	if input.ResponseFormat != nil && input.ResponseFormat.Type == ResponseFormatTypeJSON {
		return params, NewUnsupportedError(m.Provider(), "structured output is not supported")
	}
	if input.PresencePenalty != nil || input.FrequencyPenalty != nil {
		return params, NewUnsupportedError(m.Provider(), "presence and frequency penalties are not supported")
	}
	if input.Seed != nil {
		return params, NewUnsupportedError(m.Provider(), "seed is not supported")
	}

	if input.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: input.SystemPrompt}}
	}
	if input.Temperature != nil {
		params.Temperature = anthropic.Float(*input.Temperature)
	}
	if input.TopP != nil {
		params.TopP = anthropic.Float(*input.TopP)
	}
	if input.TopK != nil {
		params.TopK = anthropic.Int(int64(*input.TopK))
	}
	if input.Reasoning != nil && input.Reasoning.Enabled {
		budget := int64(input.Reasoning.BudgetTokens)
		if budget < 1024 {
			budget = 1024
		}
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	for _, msg := range input.Messages {
		converted, err := m.convertMessage(msg)
		if err != nil {
			return params, err
		}
		params.Messages = append(params.Messages, converted)
	}

	for _, tool := range input.Tools {
		encoded, err := json.Marshal(tool.Parameters)
		if err != nil {
			return params, NewInvalidInputError(fmt.Sprintf("tool %s parameters: %v", tool.Name, err))
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(encoded, &schema); err != nil {
			return params, NewInvalidInputError(fmt.Sprintf("tool %s parameters: %v", tool.Name, err))
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool != nil && tool.Description != "" {
			toolParam.OfTool.Description = anthropic.String(tool.Description)
		}
		params.Tools = append(params.Tools, toolParam)
	}

	return params, nil
}

// convertMessage maps one unified message to an Anthropic message param.
// Tool messages become user messages carrying tool result blocks.
func (m *AnthropicModel) convertMessage(msg Message) (anthropic.MessageParam, error) {
	parts := FlattenDocumentParts(FlattenSourceParts(msg.Content))

	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch part.Type {
		case PartTypeText:
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case PartTypeImage:
			blocks = append(blocks, anthropic.NewImageBlockBase64(part.Image.MimeType, part.Image.Data))
		case PartTypeToolCall:
			var toolInput any
			if err := json.Unmarshal(part.ToolCall.Args, &toolInput); err != nil {
				return anthropic.MessageParam{}, NewInvalidInputError(
					fmt.Sprintf("tool call %s arguments: %v", part.ToolCall.ToolName, err))
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(part.ToolCall.ToolCallID, toolInput, part.ToolCall.ToolName))
		case PartTypeToolResult:
			text := TextParts(FlattenDocumentParts(FlattenSourceParts(part.ToolResult.Content)))
			blocks = append(blocks, anthropic.NewToolResultBlock(part.ToolResult.ToolCallID, text, part.ToolResult.IsError))
		case PartTypeReasoning:
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfThinking: &anthropic.ThinkingBlockParam{
					Thinking:  part.Reasoning.Text,
					Signature: part.Reasoning.Signature,
				},
			})
		default:
			return anthropic.MessageParam{}, NewUnsupportedError(m.Provider(),
				fmt.Sprintf("%s part in %s message", part.Type, msg.Role))
		}
	}

	if msg.Role == RoleAssistant {
		return anthropic.NewAssistantMessage(blocks...), nil
	}
	return anthropic.NewUserMessage(blocks...), nil
}

func convertAnthropicUsage(inputTokens, outputTokens, cacheReadTokens int64) *ModelUsage {
	return &ModelUsage{
		InputTokens:  int(inputTokens + cacheReadTokens),
		OutputTokens: int(outputTokens),
		InputTokensDetails: &ModelTokensDetails{
			TextTokens:       int(inputTokens),
			CachedTextTokens: int(cacheReadTokens),
		},
		OutputTokensDetails: &ModelTokensDetails{
			TextTokens: int(outputTokens),
		},
	}
}

// mapAnthropicError translates anthropic-sdk-go errors into the SDK taxonomy.
func mapAnthropicError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return NewStatusCodeError(apierr.StatusCode, apierr.Error())
	}
	return NewTransportError(err)
}

var _ LanguageModel = (*AnthropicModel)(nil)
