// ABOUTME: RunSession: per-conversation runtime holding resolved instructions, tools, and toolkit sessions.
// ABOUTME: Implements the turn loop shared by blocking and streaming runs, with parallel tool dispatch.

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/harborai/loom/llm"
)

// RunSession is the per-conversation runtime of an Agent. It owns its
// toolkit sessions exclusively and must be closed after use.
type RunSession[C any] struct {
	agent           *Agent[C]
	c               C
	id              string
	systemPrompt    string
	tools           map[string]Tool[C]
	toolDefs        []llm.ToolDefinition
	schemas         map[string]*jsonschema.Schema
	toolkitSessions []ToolkitSession[C]

	closeOnce sync.Once
	closeErr  error
}

// CreateSession resolves instructions and toolkits for one caller context
// and validates the combined tool set.
func (a *Agent[C]) CreateSession(ctx context.Context, c C) (*RunSession[C], error) {
	session := &RunSession[C]{
		agent: a,
		c:     c,
		id:    ulid.Make().String(),
	}

	prompt, err := resolveInstructions(ctx, a.params.Instructions, c)
	if err != nil {
		return nil, err
	}
	session.systemPrompt = prompt

	for _, toolkit := range a.params.Toolkits {
		ts, err := toolkit.CreateSession(ctx, c)
		if err != nil {
			session.Close()
			return nil, err
		}
		session.toolkitSessions = append(session.toolkitSessions, ts)
		if extra := ts.SystemPrompt(); extra != "" {
			if session.systemPrompt != "" {
				session.systemPrompt += "\n"
			}
			session.systemPrompt += extra
		}
	}

	var all []Tool[C]
	all = append(all, a.params.Tools...)
	for _, ts := range session.toolkitSessions {
		all = append(all, ts.Tools()...)
	}
	if err := session.registerTools(all); err != nil {
		session.Close()
		return nil, err
	}

	a.params.Logger.Debug("agent session created",
		"agent", a.params.Name, "session_id", session.id, "tools", len(session.tools))
	return session, nil
}

// registerTools validates names, rejects duplicates, and compiles each
// parameter schema for argument validation.
func (s *RunSession[C]) registerTools(tools []Tool[C]) error {
	s.tools = make(map[string]Tool[C], len(tools))
	s.schemas = make(map[string]*jsonschema.Schema, len(tools))

	for _, tool := range tools {
		name := tool.Name()
		if !toolNameRe.MatchString(name) {
			return NewInvariantError(fmt.Sprintf("invalid tool name %q", name))
		}
		if _, exists := s.tools[name]; exists {
			return NewInvariantError(fmt.Sprintf("duplicate tool name %q", name))
		}

		params := tool.Parameters()
		if rootType, _ := params["type"].(string); rootType != "object" {
			return NewInvariantError(fmt.Sprintf("tool %s parameters must declare type object", name))
		}
		schema, err := compileSchema(name, params)
		if err != nil {
			return NewInvariantError(fmt.Sprintf("tool %s schema: %v", name, err))
		}

		s.tools[name] = tool
		s.schemas[name] = schema
		s.toolDefs = append(s.toolDefs, llm.ToolDefinition{
			Name:        name,
			Description: tool.Description(),
			Parameters:  params,
		})
	}
	return nil
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "tool:///" + name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// ID returns the session's ULID.
func (s *RunSession[C]) ID() string { return s.id }

// Close releases toolkit sessions. Idempotent; returns the first close
// error encountered.
func (s *RunSession[C]) Close() error {
	s.closeOnce.Do(func() {
		for _, ts := range s.toolkitSessions {
			if err := ts.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.agent.params.Logger.Debug("agent session closed",
			"agent", s.agent.params.Name, "session_id", s.id)
	})
	return s.closeErr
}

// Run executes a blocking run: model turns interleaved with tool execution
// until the model stops calling tools or the turn budget runs out.
func (s *RunSession[C]) Run(ctx context.Context, input []AgentItem) (*AgentResponse, error) {
	ctx, span := startRunSpan(ctx, s.agent.params.Name, "run")
	defer span.End()

	resp, err := s.runLoop(ctx, input, nil, false)
	finishRunSpan(span, resp, err)
	return resp, err
}

// runLoop is the shared turn loop. emit is nil for blocking runs; for
// streaming runs it forwards events and reports whether the consumer is
// still listening.
func (s *RunSession[C]) runLoop(ctx context.Context, input []AgentItem, emit func(AgentStreamEvent) bool, streaming bool) (*AgentResponse, error) {
	maxTurns := s.agent.params.MaxTurns
	if maxTurns <= 0 {
		return nil, NewInvariantError("max_turns exceeded")
	}
	if emit == nil {
		emit = func(AgentStreamEvent) bool { return true }
	}

	messages, err := itemsToMessages(input)
	if err != nil {
		return nil, err
	}

	state := NewRunState()
	var output []AgentItem
	itemIndex := 0

	for turn := 0; turn < maxTurns; turn++ {
		resp, err := s.modelTurn(ctx, messages, emit, streaming)
		if err != nil {
			return nil, err
		}

		item := NewModelItem(resp)
		output = append(output, item)
		if !emit(AgentStreamEvent{Item: &AgentStreamItemEvent{Index: itemIndex, Item: item}}) {
			return nil, ctx.Err()
		}
		itemIndex++

		calls := llm.ToolCallParts(resp.Content)
		if len(calls) == 0 {
			return &AgentResponse{Content: resp.Content, Output: output}, nil
		}

		results, err := s.executeToolCalls(ctx, calls, state)
		if err != nil {
			return nil, err
		}
		toolMsg := llm.NewToolMessage(results...)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			toolMsg,
		)

		toolItem := NewMessageItem(toolMsg)
		output = append(output, toolItem)
		if !emit(AgentStreamEvent{Item: &AgentStreamItemEvent{Index: itemIndex, Item: toolItem}}) {
			return nil, ctx.Err()
		}
		itemIndex++
	}

	return nil, NewInvariantError("max_turns exceeded")
}

// modelTurn performs one model invocation, accumulating a stream when
// streaming and forwarding each partial to emit.
func (s *RunSession[C]) modelTurn(ctx context.Context, messages []llm.Message, emit func(AgentStreamEvent) bool, streaming bool) (*llm.ModelResponse, error) {
	modelInput := s.buildInput(messages)
	if !streaming {
		return s.agent.params.Model.Generate(ctx, modelInput)
	}

	stream, err := s.agent.params.Model.Stream(ctx, modelInput)
	if err != nil {
		return nil, err
	}
	acc := llm.NewStreamAccumulator()
	for ev := range stream {
		if ev.Err != nil {
			return nil, ev.Err
		}
		acc.Add(ev.Partial)
		if !emit(AgentStreamEvent{Partial: ev.Partial}) {
			return nil, ctx.Err()
		}
	}
	return acc.Response()
}

// buildInput assembles the LanguageModelInput for one turn from the
// session's resolved state and the agent's sampling parameters.
func (s *RunSession[C]) buildInput(messages []llm.Message) *llm.LanguageModelInput {
	params := s.agent.params
	return &llm.LanguageModelInput{
		Messages:         messages,
		SystemPrompt:     s.systemPrompt,
		Tools:            s.toolDefs,
		ResponseFormat:   params.ResponseFormat,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		TopK:             params.TopK,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
		Modalities:       params.Modalities,
		Audio:            params.Audio,
		Reasoning:        params.Reasoning,
	}
}

// executeToolCalls runs all tool calls of one assistant message in
// parallel. The returned parts preserve call order regardless of completion
// order; the first unknown tool name fails the run before anything starts.
func (s *RunSession[C]) executeToolCalls(ctx context.Context, calls []*llm.ToolCallPartData, state *RunState) ([]llm.Part, error) {
	for _, call := range calls {
		if _, ok := s.tools[call.ToolName]; !ok {
			return nil, NewInvariantError(fmt.Sprintf("Tool %s not found for tool call", call.ToolName))
		}
	}

	results := make([]llm.Part, len(calls))
	g, ctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			result, err := s.executeTool(ctx, s.tools[call.ToolName], call, state)
			if err != nil {
				return err
			}
			results[i] = llm.NewToolResultPart(call.ToolCallID, call.ToolName, result.Content, result.IsError)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// executeTool validates arguments and runs one tool under its own span.
// Invalid arguments produce a recoverable error result so the model can
// retry; a tool error fails the run.
func (s *RunSession[C]) executeTool(ctx context.Context, tool Tool[C], call *llm.ToolCallPartData, state *RunState) (ToolResult, error) {
	ctx, span := startToolSpan(ctx, tool, call.ToolCallID)
	defer span.End()

	if err := s.validateArgs(call.ToolName, call.Args); err != nil {
		return ErrorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	result, err := tool.Execute(ctx, call.Args, s.c, state)
	if err != nil {
		wrapped := NewToolExecutionError(call.ToolName, err)
		recordSpanError(span, wrapped)
		return ToolResult{}, wrapped
	}
	return result, nil
}

func (s *RunSession[C]) validateArgs(toolName string, args json.RawMessage) error {
	schema := s.schemas[toolName]
	if schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return err
	}
	return schema.Validate(value)
}

// itemsToMessages expands the input item sequence into the message list
// sent to the model. Model items become assistant messages carrying the
// response content.
func itemsToMessages(items []AgentItem) ([]llm.Message, error) {
	messages := make([]llm.Message, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case AgentItemTypeMessage:
			if item.Message == nil {
				return nil, NewInvariantError("message item with no message")
			}
			if err := llm.ValidateMessage(*item.Message); err != nil {
				return nil, NewInvariantError(err.Error())
			}
			messages = append(messages, *item.Message)
		case AgentItemTypeModel:
			if item.Model == nil {
				return nil, NewInvariantError("model item with no response")
			}
			messages = append(messages, llm.Message{
				Role:    llm.RoleAssistant,
				Content: item.Model.Content,
			})
		default:
			return nil, NewInvariantError(fmt.Sprintf("unknown item type %q", item.Type))
		}
	}
	return messages, nil
}
