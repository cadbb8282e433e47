// ABOUTME: OpenTelemetry span helpers for agent runs and tool executions.
// ABOUTME: Run spans aggregate usage and cost across every model item in the run output.

package agent

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/harborai/loom/agent"

func startRunSpan(ctx context.Context, agentName, method string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm_agent."+method,
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "invoke_agent"),
			attribute.String("gen_ai.agent.name", agentName),
			attribute.String("llm_agent.method", method),
		))
}

// finishRunSpan records aggregate usage and cost from the run output, or the
// error that ended the run.
func finishRunSpan(span trace.Span, resp *AgentResponse, err error) {
	if err != nil {
		recordSpanError(span, err)
		return
	}
	if resp == nil {
		return
	}

	var inputTokens, outputTokens int
	var cost float64
	var hasCost bool
	for _, item := range resp.Output {
		if item.Type != AgentItemTypeModel || item.Model == nil {
			continue
		}
		if item.Model.Usage != nil {
			inputTokens += item.Model.Usage.InputTokens
			outputTokens += item.Model.Usage.OutputTokens
		}
		if item.Model.Cost != nil {
			cost += *item.Model.Cost
			hasCost = true
		}
	}

	span.SetAttributes(
		attribute.Int("gen_ai.model.input_tokens", inputTokens),
		attribute.Int("gen_ai.model.output_tokens", outputTokens),
	)
	if hasCost {
		span.SetAttributes(attribute.Float64("llm_agent.cost", cost))
	}
}

func startToolSpan[C any](ctx context.Context, tool Tool[C], callID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "llm_agent.tool",
		trace.WithAttributes(
			attribute.String("gen_ai.tool.name", tool.Name()),
			attribute.String("gen_ai.tool.description", tool.Description()),
			attribute.String("gen_ai.tool.call.id", callID),
			attribute.String("gen_ai.tool.type", "function"),
		))
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
