// ABOUTME: Google Gemini adapter implementing the LanguageModel interface via the Gen AI SDK.
// ABOUTME: Converts unified parts to genai contents, synthesizing tool call ids the API omits.

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GoogleModel implements LanguageModel for the Gemini API.
type GoogleModel struct {
	client   *genai.Client
	modelID  string
	metadata *LanguageModelMetadata
}

// GoogleOption is a functional option for configuring a GoogleModel.
type GoogleOption func(*googleConfig)

type googleConfig struct {
	metadata *LanguageModelMetadata
}

// WithGoogleMetadata overrides the catalog metadata for this model.
func WithGoogleMetadata(metadata *LanguageModelMetadata) GoogleOption {
	return func(c *googleConfig) {
		c.metadata = metadata
	}
}

// NewGoogleModel creates a Gemini adapter for the given model id.
func NewGoogleModel(ctx context.Context, apiKey, modelID string, opts ...GoogleOption) (*GoogleModel, error) {
	cfg := &googleConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, NewTransportError(err)
	}

	metadata := cfg.metadata
	if metadata == nil {
		metadata = LookupModelMetadata(modelID)
	}

	return &GoogleModel{client: client, modelID: modelID, metadata: metadata}, nil
}

func (m *GoogleModel) Provider() string                 { return "google" }
func (m *GoogleModel) ModelID() string                  { return m.modelID }
func (m *GoogleModel) Metadata() *LanguageModelMetadata { return m.metadata }

// Generate performs a blocking GenerateContent call.
func (m *GoogleModel) Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error) {
	contents, config, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}

	result, err := m.client.Models.GenerateContent(ctx, m.modelID, contents, config)
	if err != nil {
		return nil, NewTransportError(err)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, NewInvariantError(m.Provider(), "response contained no candidates")
	}

	var content []Part
	for _, part := range result.Candidates[0].Content.Parts {
		converted, err := m.convertResponsePart(part)
		if err != nil {
			return nil, err
		}
		if converted != nil {
			content = append(content, *converted)
		}
	}

	usage := convertGoogleUsage(result.UsageMetadata)
	resp := &ModelResponse{Content: content, Usage: usage}
	if usage != nil && m.metadata != nil && m.metadata.Pricing != nil {
		resp.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
	}
	return resp, nil
}

// Stream performs a streaming GenerateContentStream call. Gemini streams whole
// parts per chunk without indices, so index assignment is guessed.
func (m *GoogleModel) Stream(ctx context.Context, input *LanguageModelInput) (<-chan StreamEvent, error) {
	contents, config, err := m.convertInput(input)
	if err != nil {
		return nil, err
	}

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

		var existing []ContentDelta
		emitDelta := func(part PartDelta) bool {
			delta := ContentDelta{Index: GuessDeltaIndex(part, existing, nil), Part: part}
			existing = append(existing, delta)
			return emit(StreamEvent{Partial: &PartialModelResponse{Delta: &delta}})
		}

		var lastUsage *genai.GenerateContentResponseUsageMetadata
		for chunk, err := range m.client.Models.GenerateContentStream(ctx, m.modelID, contents, config) {
			if err != nil {
				events <- StreamEvent{Err: NewTransportError(err)}
				return
			}
			if chunk == nil {
				continue
			}
			if chunk.UsageMetadata != nil {
				lastUsage = chunk.UsageMetadata
			}
			for _, candidate := range chunk.Candidates {
				if candidate == nil || candidate.Content == nil {
					continue
				}
				for _, part := range candidate.Content.Parts {
					if part == nil {
						continue
					}
					switch {
					case part.Text != "" && part.Thought:
						if !emitDelta(NewReasoningPartDelta(part.Text)) {
							return
						}
					case part.Text != "":
						if !emitDelta(NewTextPartDelta(part.Text)) {
							return
						}
					case part.FunctionCall != nil:
						args, err := json.Marshal(part.FunctionCall.Args)
						if err != nil {
							events <- StreamEvent{Err: NewInvariantError(m.Provider(),
								fmt.Sprintf("function call arguments: %v", err))}
							return
						}
						delta := ContentDelta{Part: NewToolCallPartDelta(
							googleToolCallID(part.FunctionCall), part.FunctionCall.Name, string(args))}
						delta.Index = maxDeltaIndex(existing) + 1
						existing = append(existing, delta)
						if !emit(StreamEvent{Partial: &PartialModelResponse{Delta: &delta}}) {
							return
						}
					}
				}
			}
		}

		if lastUsage != nil {
			usage := convertGoogleUsage(lastUsage)
			partial := &PartialModelResponse{Usage: usage}
			if m.metadata != nil && m.metadata.Pricing != nil {
				partial.Cost = Ptr(CalculateCost(usage, m.metadata.Pricing))
			}
			emit(StreamEvent{Partial: partial})
		}
	}()

	return events, nil
}

// convertInput translates a LanguageModelInput into genai contents and config.
func (m *GoogleModel) convertInput(input *LanguageModelInput) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	for _, modality := range input.Modalities {
		if modality == ModalityAudio {
			return nil, nil, NewUnsupportedError(m.Provider(), "audio output is not supported")
		}
	}

	config := &genai.GenerateContentConfig{}
	if input.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: input.SystemPrompt}},
		}
	}
	if input.MaxTokens != nil {
		config.MaxOutputTokens = int32(*input.MaxTokens)
	}
	if input.Temperature != nil {
		config.Temperature = Ptr(float32(*input.Temperature))
	}
	if input.TopP != nil {
		config.TopP = Ptr(float32(*input.TopP))
	}
	if input.TopK != nil {
		config.TopK = Ptr(float32(*input.TopK))
	}
	if input.PresencePenalty != nil {
		config.PresencePenalty = Ptr(float32(*input.PresencePenalty))
	}
	if input.FrequencyPenalty != nil {
		config.FrequencyPenalty = Ptr(float32(*input.FrequencyPenalty))
	}
	if input.Seed != nil {
		config.Seed = Ptr(int32(*input.Seed))
	}
	if input.ResponseFormat != nil && input.ResponseFormat.Type == ResponseFormatTypeJSON {
		config.ResponseMIMEType = "application/json"
		if input.ResponseFormat.Schema != nil {
			config.ResponseSchema = googleSchema(input.ResponseFormat.Schema)
		}
	}
	if input.Reasoning != nil && input.Reasoning.Enabled {
		thinking := &genai.ThinkingConfig{IncludeThoughts: true}
		if input.Reasoning.BudgetTokens > 0 {
			thinking.ThinkingBudget = Ptr(int32(input.Reasoning.BudgetTokens))
		}
		config.ThinkingConfig = thinking
	}

	if len(input.Tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, 0, len(input.Tools))
		for _, tool := range input.Tools {
			declarations = append(declarations, &genai.FunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  googleSchema(tool.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	var contents []*genai.Content
	for _, msg := range input.Messages {
		content, err := m.convertMessage(msg, input.Messages)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, content)
	}
	return contents, config, nil
}

// convertMessage maps one unified message to a genai content. Tool messages
// become user-role contents carrying function responses.
func (m *GoogleModel) convertMessage(msg Message, history []Message) (*genai.Content, error) {
	content := &genai.Content{Role: genai.RoleUser}
	if msg.Role == RoleAssistant {
		content.Role = genai.RoleModel
	}

	parts := FlattenDocumentParts(FlattenSourceParts(msg.Content))
	for _, part := range parts {
		switch part.Type {
		case PartTypeText:
			content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
		case PartTypeImage:
			data, err := base64.StdEncoding.DecodeString(part.Image.Data)
			if err != nil {
				return nil, NewInvalidInputError(fmt.Sprintf("image data: %v", err))
			}
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{Data: data, MIMEType: part.Image.MimeType},
			})
		case PartTypeAudio:
			data, err := base64.StdEncoding.DecodeString(part.Audio.Data)
			if err != nil {
				return nil, NewInvalidInputError(fmt.Sprintf("audio data: %v", err))
			}
			content.Parts = append(content.Parts, &genai.Part{
				InlineData: &genai.Blob{Data: data, MIMEType: part.Audio.Format.MIMEType()},
			})
		case PartTypeToolCall:
			var args map[string]any
			if err := json.Unmarshal(part.ToolCall.Args, &args); err != nil {
				return nil, NewInvalidInputError(
					fmt.Sprintf("tool call %s arguments: %v", part.ToolCall.ToolName, err))
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: part.ToolCall.ToolName, Args: args},
			})
		case PartTypeToolResult:
			name := part.ToolResult.ToolName
			if name == "" {
				name = toolNameForCallID(part.ToolResult.ToolCallID, history)
			}
			text := TextParts(FlattenDocumentParts(FlattenSourceParts(part.ToolResult.Content)))
			var response map[string]any
			if err := json.Unmarshal([]byte(text), &response); err != nil {
				response = map[string]any{"result": text, "error": part.ToolResult.IsError}
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: name, Response: response},
			})
		case PartTypeReasoning:
			content.Parts = append(content.Parts, &genai.Part{Text: part.Reasoning.Text, Thought: true})
		default:
			return nil, NewUnsupportedError(m.Provider(),
				fmt.Sprintf("%s part in %s message", part.Type, msg.Role))
		}
	}
	return content, nil
}

func (m *GoogleModel) convertResponsePart(part *genai.Part) (*Part, error) {
	if part == nil {
		return nil, nil
	}
	switch {
	case part.Text != "" && part.Thought:
		p := NewReasoningPart(part.Text, "")
		return &p, nil
	case part.Text != "":
		p := NewTextPart(part.Text)
		return &p, nil
	case part.FunctionCall != nil:
		args, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			return nil, NewInvariantError(m.Provider(), fmt.Sprintf("function call arguments: %v", err))
		}
		p := NewToolCallPart(googleToolCallID(part.FunctionCall), part.FunctionCall.Name, args)
		return &p, nil
	case part.InlineData != nil:
		p := NewImagePart(part.InlineData.MIMEType, base64.StdEncoding.EncodeToString(part.InlineData.Data))
		return &p, nil
	}
	return nil, nil
}

// googleToolCallID returns the API-supplied call id or synthesizes one, since
// Gemini function calls usually arrive without ids.
func googleToolCallID(call *genai.FunctionCall) string {
	if call.ID != "" {
		return call.ID
	}
	return "call_" + uuid.NewString()
}

// toolNameForCallID recovers a tool name by scanning earlier assistant
// messages for the matching tool call.
func toolNameForCallID(toolCallID string, history []Message) string {
	for _, msg := range history {
		for _, part := range msg.Content {
			if part.Type == PartTypeToolCall && part.ToolCall.ToolCallID == toolCallID {
				return part.ToolCall.ToolName
			}
		}
	}
	return ""
}

func maxDeltaIndex(deltas []ContentDelta) int {
	max := -1
	for _, d := range deltas {
		if d.Index > max {
			max = d.Index
		}
	}
	return max
}

// googleSchema converts a JSON Schema map into genai's Schema type. Only the
// subset the function calling API understands is mapped.
func googleSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := schemaMap["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				schema.Enum = append(schema.Enum, s)
			}
		}
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = googleSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = googleSchema(items)
	}
	return schema
}

func convertGoogleUsage(metadata *genai.GenerateContentResponseUsageMetadata) *ModelUsage {
	if metadata == nil {
		return nil
	}
	input := int(metadata.PromptTokenCount)
	cached := int(metadata.CachedContentTokenCount)
	output := int(metadata.CandidatesTokenCount)
	thoughts := int(metadata.ThoughtsTokenCount)
	return &ModelUsage{
		InputTokens:  input,
		OutputTokens: output + thoughts,
		InputTokensDetails: &ModelTokensDetails{
			TextTokens:       input - cached,
			CachedTextTokens: cached,
		},
		OutputTokensDetails: &ModelTokensDetails{
			TextTokens: output + thoughts,
		},
	}
}

var _ LanguageModel = (*GoogleModel)(nil)
