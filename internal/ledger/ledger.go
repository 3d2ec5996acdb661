// Package ledger holds the learner's in-progress answers and derives progress from them.
package ledger

import "sync"

// Ledger maps question id to the learner's current answer. Writes are last-write-wins;
// entries are only ever cleared all at once.
type Ledger struct {
	mu      sync.RWMutex
	answers map[string]string
}

func New() *Ledger {
	return &Ledger{answers: make(map[string]string)}
}

func (l *Ledger) Set(questionID, answer string) {
	l.mu.Lock()
	l.answers[questionID] = answer
	l.mu.Unlock()
}

func (l *Ledger) Get(questionID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.answers[questionID]
	return a, ok
}

// Snapshot returns a copy safe to read without holding the ledger.
func (l *Ledger) Snapshot() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]string, len(l.answers))
	for k, v := range l.answers {
		out[k] = v
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.answers)
}

func (l *Ledger) Reset() {
	l.mu.Lock()
	l.answers = make(map[string]string)
	l.mu.Unlock()
}
