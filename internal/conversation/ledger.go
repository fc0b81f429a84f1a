// Package conversation keeps per-thread message history for the agent.
// Ledgers live for the lifetime of the process; there is no eviction.
package conversation

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role Role
	Text string
}

// thread holds one conversation's turns behind its own lock, so requests on
// different threads never contend and same-thread append+read serialize.
type thread struct {
	mu    sync.Mutex
	turns []Turn
}

// Ledger is an append-only conversation store keyed by thread id.
type Ledger struct {
	mu      sync.Mutex
	threads map[string]*thread
}

// NewLedger creates an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{threads: make(map[string]*thread)}
}

// lookup returns the thread for id, creating it on first reference. The table
// lock is released before the per-thread lock is ever taken.
func (l *Ledger) lookup(threadID string) *thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.threads[threadID]
	if !ok {
		t = &thread{}
		l.threads[threadID] = t
	}
	return t
}

// Append adds a turn to the end of the thread's history. Turns are never
// replaced or merged; messages accumulate for the lifetime of the thread.
func (l *Ledger) Append(threadID string, turn Turn) {
	t := l.lookup(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turn)
}

// History returns a copy of the most recent turns, at most limit. A
// non-positive limit returns the full history.
func (l *Ledger) History(threadID string, limit int) []Turn {
	t := l.lookup(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.turns)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Turn, n)
	copy(out, t.turns[len(t.turns)-n:])
	return out
}

// AppendAndSnapshot appends the turn and returns a copy of the full history
// including it, under a single critical section so concurrent requests on the
// same thread cannot interleave between the write and the read.
func (l *Ledger) AppendAndSnapshot(threadID string, turn Turn) []Turn {
	t := l.lookup(threadID)
	t.mu.Lock()
	defer t.mu.Unlock()

	t.turns = append(t.turns, turn)
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}
