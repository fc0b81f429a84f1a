package agent

import (
	"context"
	"log/slog"

	"github.com/irfanhaider/mulbot/internal/cache"
	"github.com/irfanhaider/mulbot/internal/conversation"
)

// SanitizedErrorMessage is the only error text that ever reaches a caller.
// Internal detail stays in the logs.
const SanitizedErrorMessage = "I'm sorry, something went wrong. Please try again."

// Executor runs one request end to end: cache probe, ledger append, pipeline
// walk, cache write, with events emitted throughout.
type Executor struct {
	cache    *cache.ResponseCache
	ledger   *conversation.Ledger
	pipeline *Pipeline
}

// NewExecutor wires the executor to its explicit dependencies. Nothing here
// is a process-wide singleton; the bootstrap owns all lifecycles.
func NewExecutor(c *cache.ResponseCache, l *conversation.Ledger, p *Pipeline) *Executor {
	return &Executor{cache: c, ledger: l, pipeline: p}
}

// Run processes one message for a thread, emitting events on s. It returns
// the final response and whether it was served from cache. On a fatal stage
// error it emits a sanitized error event, writes nothing to the cache, and
// returns the internal error for logging by the caller's layer only.
//
// The stream always ends: status events in state order, then one response
// event, then done — or a single error event after the statuses.
func (ex *Executor) Run(ctx context.Context, threadID, message string, s *Streamer) (string, bool, error) {
	defer s.close()

	if resp, ok := ex.cache.Get(message); ok {
		s.Emit(Event{Type: EventStatus, Icon: "⚡", Text: "Retrieved from cache...", Node: "cache"})
		s.Emit(Event{Type: EventResponse, Response: resp, ThreadID: threadID, Cached: true})
		s.Emit(Event{Type: EventDone})
		return resp, true, nil
	}

	turns := ex.ledger.AppendAndSnapshot(threadID, conversation.Turn{
		Role: conversation.RoleUser,
		Text: message,
	})

	st := &State{ThreadID: threadID, Turns: turns}
	err := ex.pipeline.Run(ctx, st, func(n Node) {
		s.Emit(Event{
			Type: EventStatus,
			Icon: statusIcon[n],
			Text: statusText[n],
			Node: string(n),
		})
	})
	if err != nil {
		slog.Error("pipeline run failed", "thread_id", threadID, "error", err)
		s.Emit(Event{Type: EventError, Response: SanitizedErrorMessage, ThreadID: threadID})
		return "", false, err
	}

	s.Emit(Event{Type: EventResponse, Response: st.Response, ThreadID: threadID})

	ex.ledger.Append(threadID, conversation.Turn{
		Role: conversation.RoleAssistant,
		Text: st.Response,
	})
	// Guardrail refusals are cached like any other answer: repeating an
	// off-topic question should short-circuit too.
	ex.cache.Put(message, st.Response)

	s.Emit(Event{Type: EventDone})
	return st.Response, false, nil
}
