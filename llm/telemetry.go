// ABOUTME: OpenTelemetry tracing decorator for LanguageModel implementations.
// ABOUTME: Wraps Generate/Stream with llm_sdk spans carrying request params, usage, and time-to-first-token.

package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/harborai/loom/llm"

// WithTracing wraps model so every Generate and Stream call opens an
// OpenTelemetry span. Wrapping an already traced model returns it unchanged.
func WithTracing(model LanguageModel) LanguageModel {
	if _, ok := model.(*tracedModel); ok {
		return model
	}
	return &tracedModel{inner: model, tracer: otel.Tracer(tracerName)}
}

type tracedModel struct {
	inner  LanguageModel
	tracer trace.Tracer
}

func (m *tracedModel) Provider() string                 { return m.inner.Provider() }
func (m *tracedModel) ModelID() string                  { return m.inner.ModelID() }
func (m *tracedModel) Metadata() *LanguageModelMetadata { return m.inner.Metadata() }

func (m *tracedModel) Generate(ctx context.Context, input *LanguageModelInput) (*ModelResponse, error) {
	ctx, span := m.tracer.Start(ctx, "llm_sdk.generate",
		trace.WithAttributes(m.requestAttributes(input)...))
	defer span.End()

	resp, err := m.inner.Generate(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	recordUsage(span, resp.Usage, resp.Cost)
	return resp, nil
}

func (m *tracedModel) Stream(ctx context.Context, input *LanguageModelInput) (<-chan StreamEvent, error) {
	ctx, span := m.tracer.Start(ctx, "llm_sdk.stream",
		trace.WithAttributes(m.requestAttributes(input)...))

	inner, err := m.inner.Stream(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer span.End()

		start := time.Now()
		first := true
		usage := &ModelUsage{}
		var cost *float64

		for ev := range inner {
			if ev.Err != nil {
				span.RecordError(ev.Err)
				span.SetStatus(codes.Error, ev.Err.Error())
			} else if ev.Partial != nil {
				if first {
					first = false
					span.SetAttributes(attribute.Float64("gen_ai.server.time_to_first_token",
						time.Since(start).Seconds()))
				}
				if ev.Partial.Usage != nil {
					merged := usage.Add(*ev.Partial.Usage)
					usage = &merged
				}
				if ev.Partial.Cost != nil {
					if cost == nil {
						cost = new(float64)
					}
					*cost += *ev.Partial.Cost
				}
			}
			out <- ev
		}
		recordUsage(span, usage, cost)
	}()
	return out, nil
}

func (m *tracedModel) requestAttributes(input *LanguageModelInput) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.provider.name", m.inner.Provider()),
		attribute.String("gen_ai.request.model", m.inner.ModelID()),
	}
	if input.MaxTokens != nil {
		attrs = append(attrs, attribute.Int("gen_ai.request.max_tokens", *input.MaxTokens))
	}
	if input.Temperature != nil {
		attrs = append(attrs, attribute.Float64("gen_ai.request.temperature", *input.Temperature))
	}
	if input.TopP != nil {
		attrs = append(attrs, attribute.Float64("gen_ai.request.top_p", *input.TopP))
	}
	if input.TopK != nil {
		attrs = append(attrs, attribute.Int("gen_ai.request.top_k", *input.TopK))
	}
	if input.PresencePenalty != nil {
		attrs = append(attrs, attribute.Float64("gen_ai.request.presence_penalty", *input.PresencePenalty))
	}
	if input.FrequencyPenalty != nil {
		attrs = append(attrs, attribute.Float64("gen_ai.request.frequency_penalty", *input.FrequencyPenalty))
	}
	if input.Seed != nil {
		attrs = append(attrs, attribute.Int("gen_ai.request.seed", *input.Seed))
	}
	return attrs
}

func recordUsage(span trace.Span, usage *ModelUsage, cost *float64) {
	if usage != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", usage.InputTokens),
			attribute.Int("gen_ai.usage.output_tokens", usage.OutputTokens),
		)
	}
	if cost != nil {
		span.SetAttributes(attribute.Float64("llm_sdk.cost", *cost))
	}
}
