// ABOUTME: Core data model for the unified LLM SDK: parts, messages, deltas, usage, and model input.
// ABOUTME: Defines the tagged-union Part type shared by every provider adapter and the agent runtime.

package llm

import (
	"encoding/json"
	"fmt"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the type of content in a Part.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeImage      PartType = "image"
	PartTypeAudio      PartType = "audio"
	PartTypeToolCall   PartType = "tool_call"
	PartTypeToolResult PartType = "tool_result"
	PartTypeSource     PartType = "source"
	PartTypeDocument   PartType = "document"
	PartTypeReasoning  PartType = "reasoning"
)

// Citation attaches source attribution to a span of text.
type Citation struct {
	Source     string `json:"source"`
	Title      string `json:"title,omitempty"`
	CitedText  string `json:"cited_text,omitempty"`
	StartIndex int    `json:"start_index,omitempty"`
	EndIndex   int    `json:"end_index,omitempty"`
}

// ImagePartData holds base64-encoded image content.
type ImagePartData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// AudioPartData holds base64-encoded audio content.
type AudioPartData struct {
	Data       string      `json:"data"`
	Format     AudioFormat `json:"format"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Channels   int         `json:"channels,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	AudioID    string      `json:"audio_id,omitempty"`
}

// ToolCallPartData represents a model-initiated tool invocation.
type ToolCallPartData struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args"`
}

// ToolResultPartData carries the outcome of a tool execution back to the model.
type ToolResultPartData struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    []Part `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// SourcePartData is a citation container: a URL plus the content it backs.
type SourcePartData struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content []Part `json:"content"`
}

// DocumentPartData groups parts that belong to one document.
type DocumentPartData struct {
	Content []Part `json:"content"`
}

// ReasoningPartData holds model reasoning output.
type ReasoningPartData struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
	ID        string `json:"id,omitempty"`
}

// Part is a single piece of message content. It uses a tagged-union pattern:
// the Type field determines which payload field is populated. Text parts keep
// their string inline; every other variant carries a pointer payload.
type Part struct {
	Type       PartType            `json:"type"`
	Text       string              `json:"text,omitempty"`
	Citation   *Citation           `json:"citation,omitempty"`
	Image      *ImagePartData      `json:"image,omitempty"`
	Audio      *AudioPartData      `json:"audio,omitempty"`
	ToolCall   *ToolCallPartData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultPartData `json:"tool_result,omitempty"`
	Source     *SourcePartData     `json:"source,omitempty"`
	Document   *DocumentPartData   `json:"document,omitempty"`
	Reasoning  *ReasoningPartData  `json:"reasoning,omitempty"`
}

// NewTextPart creates a text Part.
func NewTextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// NewImagePart creates an image Part from base64 data and a MIME type.
func NewImagePart(mimeType, data string) Part {
	return Part{Type: PartTypeImage, Image: &ImagePartData{MimeType: mimeType, Data: data}}
}

// NewAudioPart creates an audio Part from base64 data and a format.
func NewAudioPart(data string, format AudioFormat) Part {
	return Part{Type: PartTypeAudio, Audio: &AudioPartData{Data: data, Format: format}}
}

// NewToolCallPart creates a tool call Part.
func NewToolCallPart(toolCallID, toolName string, args json.RawMessage) Part {
	return Part{Type: PartTypeToolCall, ToolCall: &ToolCallPartData{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Args:       args,
	}}
}

// NewToolResultPart creates a tool result Part.
func NewToolResultPart(toolCallID, toolName string, content []Part, isError bool) Part {
	return Part{Type: PartTypeToolResult, ToolResult: &ToolResultPartData{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    content,
		IsError:    isError,
	}}
}

// NewSourcePart creates a source Part backing the given content.
func NewSourcePart(url, title string, content []Part) Part {
	return Part{Type: PartTypeSource, Source: &SourcePartData{URL: url, Title: title, Content: content}}
}

// NewDocumentPart creates a document Part grouping the given content.
func NewDocumentPart(content []Part) Part {
	return Part{Type: PartTypeDocument, Document: &DocumentPartData{Content: content}}
}

// NewReasoningPart creates a reasoning Part.
func NewReasoningPart(text, signature string) Part {
	return Part{Type: PartTypeReasoning, Reasoning: &ReasoningPartData{Text: text, Signature: signature}}
}

// Message is the fundamental unit of conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content []Part `json:"content"`
}

// NewUserMessage creates a user-role message.
func NewUserMessage(parts ...Part) Message {
	return Message{Role: RoleUser, Content: parts}
}

// NewAssistantMessage creates an assistant-role message.
func NewAssistantMessage(parts ...Part) Message {
	return Message{Role: RoleAssistant, Content: parts}
}

// NewToolMessage creates a tool-role message.
func NewToolMessage(parts ...Part) Message {
	return Message{Role: RoleTool, Content: parts}
}

// ValidateMessage enforces the role/part invariant: only assistant messages
// may contain tool calls, only tool messages may contain tool results, and
// user messages carry neither.
func ValidateMessage(m Message) error {
	for _, part := range m.Content {
		switch part.Type {
		case PartTypeToolCall:
			if m.Role != RoleAssistant {
				return fmt.Errorf("tool call part in %s message", m.Role)
			}
		case PartTypeToolResult:
			if m.Role != RoleTool {
				return fmt.Errorf("tool result part in %s message", m.Role)
			}
		}
	}
	return nil
}

// TextContent returns concatenated text from all text parts in the message.
func (m *Message) TextContent() string {
	var result string
	for _, part := range m.Content {
		if part.Type == PartTypeText {
			result += part.Text
		}
	}
	return result
}

// ToolCallParts returns all tool call parts in order of appearance.
func ToolCallParts(parts []Part) []*ToolCallPartData {
	var calls []*ToolCallPartData
	for _, part := range parts {
		if part.Type == PartTypeToolCall && part.ToolCall != nil {
			calls = append(calls, part.ToolCall)
		}
	}
	return calls
}

// TextParts concatenates the text of all text parts.
func TextParts(parts []Part) string {
	var result string
	for _, part := range parts {
		if part.Type == PartTypeText {
			result += part.Text
		}
	}
	return result
}

// ModelTokensDetails breaks a token count down by content kind.
type ModelTokensDetails struct {
	TextTokens        int `json:"text_tokens,omitempty"`
	AudioTokens       int `json:"audio_tokens,omitempty"`
	ImageTokens       int `json:"image_tokens,omitempty"`
	CachedTextTokens  int `json:"cached_text_tokens,omitempty"`
	CachedAudioTokens int `json:"cached_audio_tokens,omitempty"`
	CachedImageTokens int `json:"cached_image_tokens,omitempty"`
}

// Add merges two details structs field by field. Nil operands count as zero.
func (d *ModelTokensDetails) Add(other *ModelTokensDetails) *ModelTokensDetails {
	if d == nil && other == nil {
		return nil
	}
	result := &ModelTokensDetails{}
	if d != nil {
		*result = *d
	}
	if other != nil {
		result.TextTokens += other.TextTokens
		result.AudioTokens += other.AudioTokens
		result.ImageTokens += other.ImageTokens
		result.CachedTextTokens += other.CachedTextTokens
		result.CachedAudioTokens += other.CachedAudioTokens
		result.CachedImageTokens += other.CachedImageTokens
	}
	return result
}

// ModelUsage tracks token consumption for a single model call.
type ModelUsage struct {
	InputTokens         int                 `json:"input_tokens"`
	OutputTokens        int                 `json:"output_tokens"`
	InputTokensDetails  *ModelTokensDetails `json:"input_tokens_details,omitempty"`
	OutputTokensDetails *ModelTokensDetails `json:"output_tokens_details,omitempty"`
}

// Add combines two usage values, summing token counts and merging details.
func (u ModelUsage) Add(other ModelUsage) ModelUsage {
	return ModelUsage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		InputTokensDetails:  u.InputTokensDetails.Add(other.InputTokensDetails),
		OutputTokensDetails: u.OutputTokensDetails.Add(other.OutputTokensDetails),
	}
}

// ModelResponse is the complete output of a model call.
type ModelResponse struct {
	Content []Part      `json:"content"`
	Usage   *ModelUsage `json:"usage,omitempty"`
	Cost    *float64    `json:"cost,omitempty"`
}

// PartDeltaType discriminates the type of a streaming part delta.
type PartDeltaType string

const (
	PartDeltaTypeText      PartDeltaType = "text"
	PartDeltaTypeAudio     PartDeltaType = "audio"
	PartDeltaTypeToolCall  PartDeltaType = "tool_call"
	PartDeltaTypeReasoning PartDeltaType = "reasoning"
)

// TextPartDelta is an incremental fragment of a text part.
type TextPartDelta struct {
	Text     string    `json:"text"`
	Citation *Citation `json:"citation,omitempty"`
}

// AudioPartDelta is an incremental fragment of an audio part. Data carries
// base64-encoded PCM16 samples.
type AudioPartDelta struct {
	Data       string      `json:"data,omitempty"`
	Format     AudioFormat `json:"format,omitempty"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Channels   int         `json:"channels,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	AudioID    string      `json:"audio_id,omitempty"`
}

// ToolCallPartDelta is an incremental fragment of a tool call part. Args is a
// fragment of the JSON-encoded argument string.
type ToolCallPartDelta struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	Args       string `json:"args,omitempty"`
}

// ReasoningPartDelta is an incremental fragment of a reasoning part.
type ReasoningPartDelta struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// PartDelta is the streaming sibling of Part, tagged the same way.
type PartDelta struct {
	Type      PartDeltaType       `json:"type"`
	Text      *TextPartDelta      `json:"text,omitempty"`
	Audio     *AudioPartDelta     `json:"audio,omitempty"`
	ToolCall  *ToolCallPartDelta  `json:"tool_call,omitempty"`
	Reasoning *ReasoningPartDelta `json:"reasoning,omitempty"`
}

// NewTextPartDelta creates a text PartDelta.
func NewTextPartDelta(text string) PartDelta {
	return PartDelta{Type: PartDeltaTypeText, Text: &TextPartDelta{Text: text}}
}

// NewToolCallPartDelta creates a tool call PartDelta carrying an args fragment.
func NewToolCallPartDelta(toolCallID, toolName, args string) PartDelta {
	return PartDelta{Type: PartDeltaTypeToolCall, ToolCall: &ToolCallPartDelta{
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Args:       args,
	}}
}

// NewReasoningPartDelta creates a reasoning PartDelta.
func NewReasoningPartDelta(text string) PartDelta {
	return PartDelta{Type: PartDeltaTypeReasoning, Reasoning: &ReasoningPartDelta{Text: text}}
}

// ContentDelta positions a PartDelta within the response content by index.
type ContentDelta struct {
	Index int       `json:"index"`
	Part  PartDelta `json:"part"`
}

// PartialModelResponse is one streamed chunk of a model response.
type PartialModelResponse struct {
	Delta *ContentDelta `json:"delta,omitempty"`
	Usage *ModelUsage   `json:"usage,omitempty"`
	Cost  *float64      `json:"cost,omitempty"`
}

// ResponseFormatType selects between free-form text and schema-constrained JSON.
type ResponseFormatType string

const (
	ResponseFormatTypeText ResponseFormatType = "text"
	ResponseFormatTypeJSON ResponseFormatType = "json"
)

// ResponseFormat specifies the desired output format of a model call.
type ResponseFormat struct {
	Type        ResponseFormatType `json:"type"`
	Name        string             `json:"name,omitempty"`
	Description string             `json:"description,omitempty"`
	Schema      map[string]any     `json:"schema,omitempty"`
}

// ResponseFormatText requests free-form text output.
func ResponseFormatText() *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatTypeText}
}

// ResponseFormatJSON requests output constrained to the given JSON schema.
func ResponseFormatJSON(name string, schema map[string]any) *ResponseFormat {
	return &ResponseFormat{Type: ResponseFormatTypeJSON, Name: name, Schema: schema}
}

// Modality names an output content kind the model may produce.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// AudioOptions configures audio output for models that support it.
type AudioOptions struct {
	Voice  string      `json:"voice,omitempty"`
	Format AudioFormat `json:"format,omitempty"`
}

// ReasoningOptions configures reasoning output for models that support it.
type ReasoningOptions struct {
	Enabled      bool `json:"enabled"`
	BudgetTokens int  `json:"budget_tokens,omitempty"`
}

// ToolDefinition describes a callable tool offered to the model. Parameters
// must be a JSON schema object with root "type": "object".
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// LanguageModelInput is the unified input for both Generate and Stream.
type LanguageModelInput struct {
	Messages         []Message        `json:"messages"`
	SystemPrompt     string           `json:"system_prompt,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat   *ResponseFormat  `json:"response_format,omitempty"`
	MaxTokens        *int             `json:"max_tokens,omitempty"`
	Temperature      *float64         `json:"temperature,omitempty"`
	TopP             *float64         `json:"top_p,omitempty"`
	TopK             *int             `json:"top_k,omitempty"`
	PresencePenalty  *float64         `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64         `json:"frequency_penalty,omitempty"`
	Seed             *int             `json:"seed,omitempty"`
	Modalities       []Modality       `json:"modalities,omitempty"`
	Audio            *AudioOptions    `json:"audio,omitempty"`
	Reasoning        *ReasoningOptions `json:"reasoning,omitempty"`
	Extra            map[string]any   `json:"extra,omitempty"`
}

// Ptr returns a pointer to v. Convenience for optional scalar fields.
func Ptr[T any](v T) *T {
	return &v
}
