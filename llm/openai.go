// ABOUTME: OpenAI Chat Completions adapter implementing the LanguageModel interface.
// ABOUTME: Translates the unified request/response model to openai-go params, including streamed tool-call indices.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel implements LanguageModel for the OpenAI Chat Completions API
// and OpenAI-compatible providers via a custom base URL.
type OpenAIModel struct {
	client   openai.Client
	modelID  string
	metadata *LanguageModelMetadata
}

// OpenAIOption is a functional option for configuring an OpenAIModel.
type OpenAIOption func(*openAIConfig)

type openAIConfig struct {
	baseURL  string
	metadata *LanguageModelMetadata
}

// WithOpenAIBaseURL points the adapter at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithOpenAIMetadata overrides the catalog metadata for this model.
func WithOpenAIMetadata(metadata *LanguageModelMetadata) OpenAIOption {
	return func(c *openAIConfig) {
		c.metadata = metadata
	}
}

// NewOpenAIModel creates an OpenAI adapter for the given model id.
func NewOpenAIModel(apiKey, modelID string, opts ...OpenAIOption) *OpenAIModel {
	cfg := &openAIConfig{}
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

	return &OpenAIModel{
		client:   openai.NewClient(reqOpts...),
		modelID:  modelID,
		metadata: metadata,
	}
}

func (m *OpenAIModel) Provider() string                 { return "openai" }
func (m *OpenAIModel) ModelID() string                  { return m.modelID }
func (m *OpenAIModel) Metadata() *LanguageModelMetadata { return m.metadata }

// Generate performs a blocking chat completion call.
func (m *OpenAIModel) Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error) {
	params, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, NewInvariantError(m.Provider(), "response contains no choices")
	}

	choice := completion.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, NewRefusalError(choice.Message.Refusal)
	}

	var content []Part
	if choice.Message.Content != "" {
		content = append(content, NewTextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			return nil, NewInvariantError(m.Provider(),
				fmt.Sprintf("malformed tool call arguments for %s", tc.Function.Name))
		}
		content = append(content, NewToolCallPart(tc.ID, tc.Function.Name, json.RawMessage(args)))
	}

	usage := convertOpenAIUsage(completion.Usage)
	resp := &ModelResponse{Content: content, Usage: usage}
	if m.metadata != nil && m.metadata.Pricing != nil {
		resp.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
	}
	return resp, nil
}

// Stream performs a streaming chat completion call. Text deltas arrive
// without indices and tool call deltas with array indices, so indices are
// reconciled through GuessDeltaIndex.
func (m *OpenAIModel) Stream(ctx context.Context, input *LanguageModelInput) (<-chan StreamEvent, error) {
	params, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := m.client.Chat.Completions.NewStreaming(ctx, params)
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		var existing []ContentDelta
		emit := func(delta ContentDelta) bool {
			existing = append(existing, delta)
			select {
			case events <- StreamEvent{Partial: &PartialModelResponse{Delta: &delta}}:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for stream.Next() {
			chunk := stream.Current()

			if len(chunk.Choices) > 0 {
				delta := chunk.Choices[0].Delta
				if delta.Refusal != "" {
					events <- StreamEvent{Err: NewRefusalError(delta.Refusal)}
					return
				}
				if delta.Content != "" {
					part := NewTextPartDelta(delta.Content)
					index := GuessDeltaIndex(part, existing, nil)
					if !emit(ContentDelta{Index: index, Part: part}) {
						return
					}
				}
				for _, tc := range delta.ToolCalls {
					part := NewToolCallPartDelta(tc.ID, tc.Function.Name, tc.Function.Arguments)
					arrayIndex := int(tc.Index)
					index := GuessDeltaIndex(part, existing, &arrayIndex)
					if !emit(ContentDelta{Index: index, Part: part}) {
						return
					}
				}
			}

			if chunk.Usage.TotalTokens > 0 {
				usage := convertOpenAIUsage(chunk.Usage)
				partial := &PartialModelResponse{Usage: usage}
				if m.metadata != nil && m.metadata.Pricing != nil {
					partial.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
				}
				select {
				case events <- StreamEvent{Partial: partial}:
				case <-ctx.Done():
					return
				}
			}
		}

		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: mapOpenAIError(err)}
		}
	}()

	return events, nil
}

// convertInput translates a LanguageModelInput into chat completion params,
// rejecting features the API cannot honor.
func (m *OpenAIModel) convertInput(input *LanguageModelInput) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{Model: m.modelID}

	if input.TopK != nil {
		return params, NewUnsupportedError(m.Provider(), "top_k is not supported")
	}
	for _, modality := range input.Modalities {
		if modality == ModalityAudio {
			return params, NewUnsupportedError(m.Provider(), "audio output is not supported")
		}
	}
	if input.Reasoning != nil && input.Reasoning.Enabled {
		return params, NewUnsupportedError(m.Provider(), "reasoning output is not supported")
	}

	if input.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*input.MaxTokens))
	}
	if input.Temperature != nil {
		params.Temperature = openai.Float(*input.Temperature)
	}
	if input.TopP != nil {
		params.TopP = openai.Float(*input.TopP)
	}
	if input.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*input.PresencePenalty)
	}
	if input.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*input.FrequencyPenalty)
	}
	if input.Seed != nil {
		params.Seed = openai.Int(int64(*input.Seed))
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if input.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(input.SystemPrompt))
	}
	for _, msg := range input.Messages {
		converted, err := m.convertMessage(msg)
		if err != nil {
			return params, err
		}
		messages = append(messages, converted...)
	}
	params.Messages = messages

	for _, tool := range input.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		})
	}

	if input.ResponseFormat != nil && input.ResponseFormat.Type == ResponseFormatTypeJSON {
		if input.ResponseFormat.Schema != nil {
			schema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   input.ResponseFormat.Name,
				Schema: input.ResponseFormat.Schema,
				Strict: openai.Bool(true),
			}
			if input.ResponseFormat.Description != "" {
				schema.Description = openai.String(input.ResponseFormat.Description)
			}
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
					Type:       "json_schema",
					JSONSchema: schema,
				},
			}
		} else {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{Type: "json_object"},
			}
		}
	}

	return params, nil
}

// convertMessage maps one unified message to chat completion messages. Tool
// messages fan out into one tool message per tool result part.
func (m *OpenAIModel) convertMessage(msg Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	parts := FlattenDocumentParts(FlattenSourceParts(msg.Content))

	switch msg.Role {
	case RoleUser:
		var contentParts []openai.ChatCompletionContentPartUnionParam
		for _, part := range parts {
			switch part.Type {
			case PartTypeText:
				contentParts = append(contentParts, openai.TextContentPart(part.Text))
			case PartTypeImage:
				url := fmt.Sprintf("data:%s;base64,%s", part.Image.MimeType, part.Image.Data)
				contentParts = append(contentParts, openai.ImageContentPart(
					openai.ChatCompletionContentPartImageImageURLParam{URL: url}))
			default:
				return nil, NewUnsupportedError(m.Provider(),
					fmt.Sprintf("%s part in user message", part.Type))
			}
		}
		return []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(contentParts),
		}, nil

	case RoleAssistant:
		var text string
		var toolCalls []openai.ChatCompletionMessageToolCallParam
		for _, part := range parts {
			switch part.Type {
			case PartTypeText:
				text += part.Text
			case PartTypeToolCall:
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   part.ToolCall.ToolCallID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      part.ToolCall.ToolName,
						Arguments: string(part.ToolCall.Args),
					},
				})
			case PartTypeReasoning:
				// Chat Completions has no channel for replaying reasoning.
			default:
				return nil, NewUnsupportedError(m.Provider(),
					fmt.Sprintf("%s part in assistant message", part.Type))
			}
		}
		assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
		if text != "" {
			assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(text),
			}
		}
		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}, nil

	case RoleTool:
		var messages []openai.ChatCompletionMessageParamUnion
		for _, part := range parts {
			if part.Type != PartTypeToolResult {
				return nil, NewUnsupportedError(m.Provider(),
					fmt.Sprintf("%s part in tool message", part.Type))
			}
			text := TextParts(FlattenDocumentParts(FlattenSourceParts(part.ToolResult.Content)))
			messages = append(messages, openai.ToolMessage(text, part.ToolResult.ToolCallID))
		}
		return messages, nil
	}

	return nil, NewInvalidInputError(fmt.Sprintf("unknown message role %q", msg.Role))
}

func convertOpenAIUsage(usage openai.CompletionUsage) *ModelUsage {
	return &ModelUsage{
		InputTokens:  int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		InputTokensDetails: &ModelTokensDetails{
			TextTokens:       int(usage.PromptTokens - usage.PromptTokensDetails.CachedTokens - usage.PromptTokensDetails.AudioTokens),
			AudioTokens:      int(usage.PromptTokensDetails.AudioTokens),
			CachedTextTokens: int(usage.PromptTokensDetails.CachedTokens),
		},
		OutputTokensDetails: &ModelTokensDetails{
			TextTokens:  int(usage.CompletionTokens - usage.CompletionTokensDetails.AudioTokens),
			AudioTokens: int(usage.CompletionTokensDetails.AudioTokens),
		},
	}
}

// mapOpenAIError translates openai-go errors into the SDK taxonomy.
func mapOpenAIError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return NewStatusCodeError(apierr.StatusCode, apierr.Error())
	}
	return NewTransportError(err)
}

var _ LanguageModel = (*OpenAIModel)(nil)
