// ABOUTME: Streaming run entry point: an async producer that owns the turn loop and event channel.
// ABOUTME: Guarantees partials precede their turn's item event and that Response (or Err) is last.

package agent

import "context"

// RunStream executes a streaming run. The returned channel yields Partial
// events for every model delta, an Item event per fully formed item, and a
// terminal Response or Err event, then closes. Cancelling ctx aborts the
// model request and any in-flight tool executions.
func (s *RunSession[C]) RunStream(ctx context.Context, input []AgentItem) (<-chan AgentStreamEvent, error) {
	ctx, span := startRunSpan(ctx, s.agent.params.Name, "run_stream")
	events := make(chan AgentStreamEvent)

	go func() {
		defer close(events)
		defer span.End()

		emit := func(ev AgentStreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := s.runLoop(ctx, input, emit, true)
		finishRunSpan(span, resp, err)
		if err != nil {
			emit(AgentStreamEvent{Err: err})
			return
		}
		emit(AgentStreamEvent{Response: resp})
	}()

	return events, nil
}
