// ABOUTME: Agent facade: immutable run parameters, functional options, and one-shot run helpers.
// ABOUTME: An Agent binds a model, instructions, and tools; sessions hold the per-run resolved state.

package agent

import (
	"context"
	"log/slog"

	"github.com/harborai/loom/llm"
)

// DefaultMaxTurns is the turn budget applied when no option overrides it.
const DefaultMaxTurns = 10

// AgentParams is the immutable configuration shared by every session of an
// Agent.
type AgentParams[C any] struct {
	Name             string
	Model            llm.LanguageModel
	Instructions     []InstructionParam[C]
	Tools            []Tool[C]
	Toolkits         []Toolkit[C]
	ResponseFormat   *llm.ResponseFormat
	MaxTurns         int
	Temperature      *float64
	TopP             *float64
	TopK             *int
	PresencePenalty  *float64
	FrequencyPenalty *float64
	Modalities       []llm.Modality
	Audio            *llm.AudioOptions
	Reasoning        *llm.ReasoningOptions
	Logger           *slog.Logger
}

// AgentOption configures an Agent at construction.
type AgentOption[C any] func(*AgentParams[C])

// WithInstructions appends system prompt fragments.
func WithInstructions[C any](params ...InstructionParam[C]) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Instructions = append(p.Instructions, params...)
	}
}

// WithTools appends static tools.
func WithTools[C any](tools ...Tool[C]) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Tools = append(p.Tools, tools...)
	}
}

// WithToolkits appends toolkits resolved per session.
func WithToolkits[C any](toolkits ...Toolkit[C]) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Toolkits = append(p.Toolkits, toolkits...)
	}
}

// WithMaxTurns sets the turn budget. Zero makes every run fail immediately.
func WithMaxTurns[C any](n int) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.MaxTurns = n
	}
}

// WithResponseFormat sets the desired output format of model calls.
func WithResponseFormat[C any](format *llm.ResponseFormat) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.ResponseFormat = format
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature[C any](t float64) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Temperature = llm.Ptr(t)
	}
}

// WithTopP sets nucleus sampling.
func WithTopP[C any](v float64) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.TopP = llm.Ptr(v)
	}
}

// WithTopK sets top-k sampling.
func WithTopK[C any](k int) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.TopK = llm.Ptr(k)
	}
}

// WithPresencePenalty sets the presence penalty.
func WithPresencePenalty[C any](v float64) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.PresencePenalty = llm.Ptr(v)
	}
}

// WithFrequencyPenalty sets the frequency penalty.
func WithFrequencyPenalty[C any](v float64) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.FrequencyPenalty = llm.Ptr(v)
	}
}

// WithModalities sets the requested output modalities.
func WithModalities[C any](modalities ...llm.Modality) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Modalities = modalities
	}
}

// WithAudio sets audio output options.
func WithAudio[C any](audio *llm.AudioOptions) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Audio = audio
	}
}

// WithReasoning sets reasoning output options.
func WithReasoning[C any](reasoning *llm.ReasoningOptions) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Reasoning = reasoning
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger[C any](logger *slog.Logger) AgentOption[C] {
	return func(p *AgentParams[C]) {
		p.Logger = logger
	}
}

// Agent is a configured orchestrator binding a model, instructions, and
// tools. Agents are immutable and safe to share across goroutines; each run
// operates on its own session.
type Agent[C any] struct {
	params *AgentParams[C]
}

// New creates an Agent. Name and model are required; everything else comes
// from options.
func New[C any](name string, model llm.LanguageModel, opts ...AgentOption[C]) *Agent[C] {
	params := &AgentParams[C]{
		Name:     name,
		Model:    model,
		MaxTurns: DefaultMaxTurns,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(params)
	}
	return &Agent[C]{params: params}
}

// Name returns the agent name.
func (a *Agent[C]) Name() string { return a.params.Name }

// Run creates a session, runs once, and closes the session. A close error
// surfaces only when the run itself succeeded; otherwise the run error
// dominates and close is best-effort.
func (a *Agent[C]) Run(ctx context.Context, req AgentRequest[C]) (*AgentResponse, error) {
	session, err := a.CreateSession(ctx, req.Context)
	if err != nil {
		return nil, err
	}

	resp, runErr := session.Run(ctx, req.Input)
	closeErr := session.Close()
	if runErr != nil {
		return nil, runErr
	}
	if closeErr != nil {
		return nil, closeErr
	}
	return resp, nil
}

// RunStream creates a session, streams one run, and closes the session when
// the stream finishes or the consumer goes away.
func (a *Agent[C]) RunStream(ctx context.Context, req AgentRequest[C]) (<-chan AgentStreamEvent, error) {
	session, err := a.CreateSession(ctx, req.Context)
	if err != nil {
		return nil, err
	}

	inner, err := session.RunStream(ctx, req.Input)
	if err != nil {
		session.Close()
		return nil, err
	}

	out := make(chan AgentStreamEvent)
	go func() {
		defer close(out)
		defer session.Close()
		for ev := range inner {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
