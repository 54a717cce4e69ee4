// Package history keeps the shared conversation memory: an ordered record
// of question/answer pairs read back as short-term dialogue context.
package history

import "sync"

// Turn is one completed question/answer exchange.
type Turn struct {
	Question string
	Answer   string
}

// Log is a mutex-guarded turn record shared by every request handler.
// A positive retention bounds how many turns are kept; zero retains
// everything, which matches the unbounded behavior of the original
// system but grows without limit.
type Log struct {
	mu        sync.Mutex
	turns     []Turn
	retention int
}

// NewLog creates a Log with the given retention bound (0 = unbounded).
func NewLog(retention int) *Log {
	if retention < 0 {
		retention = 0
	}
	return &Log{retention: retention}
}

// Append records a completed turn. When the retention bound is exceeded
// the oldest turns are discarded.
func (l *Log) Append(t Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
	if l.retention > 0 && len(l.turns) > l.retention {
		overflow := len(l.turns) - l.retention
		l.turns = append(l.turns[:0:0], l.turns[overflow:]...)
	}
}

// Recent returns the most recent n turns in chronological order, fewer if
// the history is shorter. The returned slice is a copy.
func (l *Log) Recent(n int) []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || len(l.turns) == 0 {
		return nil
	}
	if n > len(l.turns) {
		n = len(l.turns)
	}
	out := make([]Turn, n)
	copy(out, l.turns[len(l.turns)-n:])
	return out
}

// Len returns the number of retained turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
