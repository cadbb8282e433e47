// ABOUTME: Agent conversation items, run requests, responses, and stream events.
// ABOUTME: AgentItem is a tagged union preserving full model responses (usage, cost) across turns.

package agent

import "github.com/harborai/loom/llm"

// AgentItemType discriminates the type of an AgentItem.
type AgentItemType string

const (
	AgentItemTypeMessage AgentItemType = "message"
	AgentItemTypeModel   AgentItemType = "model"
)

// AgentItem is one element of an agent conversation: either a plain message
// or a complete model response. Model items keep reasoning, usage, and cost
// that a bare message would lose.
type AgentItem struct {
	Type    AgentItemType      `json:"type"`
	Message *llm.Message       `json:"message,omitempty"`
	Model   *llm.ModelResponse `json:"model,omitempty"`
}

// NewMessageItem wraps a message as an AgentItem.
func NewMessageItem(msg llm.Message) AgentItem {
	return AgentItem{Type: AgentItemTypeMessage, Message: &msg}
}

// NewModelItem wraps a model response as an AgentItem.
func NewModelItem(resp *llm.ModelResponse) AgentItem {
	return AgentItem{Type: AgentItemTypeModel, Model: resp}
}

// UserItem wraps a user text message as an AgentItem.
func UserItem(text string) AgentItem {
	return NewMessageItem(llm.NewUserMessage(llm.NewTextPart(text)))
}

// AgentRequest is one run request: the caller context plus conversation
// input.
type AgentRequest[C any] struct {
	Context C
	Input   []AgentItem
}

// AgentResponse is the final outcome of a run. Content is the last model
// response's content; Output holds every item the run produced, in causal
// order.
type AgentResponse struct {
	Content []llm.Part  `json:"content"`
	Output  []AgentItem `json:"output"`
}

// Text returns the concatenated text parts of the final response content.
func (r *AgentResponse) Text() string {
	return llm.TextParts(r.Content)
}

// AgentStreamItemEvent carries one fully formed item with its zero-based
// position in the run's output sequence.
type AgentStreamItemEvent struct {
	Index int       `json:"index"`
	Item  AgentItem `json:"item"`
}

// AgentStreamEvent is one element of a run stream. Exactly one field is set.
// A Response event is terminal and emitted exactly once on success; an Err
// event is terminal on failure.
type AgentStreamEvent struct {
	Partial  *llm.PartialModelResponse
	Item     *AgentStreamItemEvent
	Response *AgentResponse
	Err      error
}
