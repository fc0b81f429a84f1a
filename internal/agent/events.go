package agent

import "sync"

// EventType discriminates stream events.
type EventType string

const (
	EventStatus   EventType = "status"
	EventResponse EventType = "response"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one progress or result message on a request's stream. Exactly the
// fields relevant to the type are set.
type Event struct {
	Type     EventType `json:"type"`
	Icon     string    `json:"icon,omitempty"`
	Text     string    `json:"text,omitempty"`
	Node     string    `json:"node,omitempty"`
	Response string    `json:"response,omitempty"`
	ThreadID string    `json:"thread_id,omitempty"`
	Cached   bool      `json:"cached,omitempty"`
}

// streamBuffer bounds the per-request event channel. Sends block when full;
// a run emits only a handful of events so this never backs up in practice.
const streamBuffer = 16

// Streamer is the single-producer event channel for one request. Events are
// delivered to the consumer in the exact order emitted. If the consumer goes
// away (Abandon), further emissions are dropped without blocking so the
// in-flight run can still finish and commit its cache/ledger writes.
type Streamer struct {
	ch        chan Event
	abandoned chan struct{}
	once      sync.Once
}

// NewStreamer creates a Streamer for one request.
func NewStreamer() *Streamer {
	return &Streamer{
		ch:        make(chan Event, streamBuffer),
		abandoned: make(chan struct{}),
	}
}

// Emit delivers an event to the consumer, blocking if the buffer is full.
// It reports false once the consumer has abandoned the stream.
func (s *Streamer) Emit(ev Event) bool {
	select {
	case <-s.abandoned:
		return false
	default:
	}
	select {
	case s.ch <- ev:
		return true
	case <-s.abandoned:
		return false
	}
}

// Events is the consumer side. The channel closes when the producer finishes.
func (s *Streamer) Events() <-chan Event {
	return s.ch
}

// close ends the stream from the producer side. Called by the Executor when
// the run completes.
func (s *Streamer) close() {
	close(s.ch)
}

// Abandon signals that the consumer has disconnected. Safe to call more than
// once and concurrently with Emit.
func (s *Streamer) Abandon() {
	s.once.Do(func() { close(s.abandoned) })
}

// statusIcon and statusText label each pipeline state for status events.
var statusIcon = map[Node]string{
	NodeRoute:     "🧠",
	NodeSearch:    "🔍",
	NodeGenerate:  "✍️",
	NodeGuardrail: "🛡️",
}

var statusText = map[Node]string{
	NodeRoute:     "Understanding your question...",
	NodeSearch:    "Searching mul.edu.pk...",
	NodeGenerate:  "Generating response...",
	NodeGuardrail: "Preparing response...",
}
