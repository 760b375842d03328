package scan

import (
	"sync"

	"github.com/google/uuid"
)

// Token identifies one scan of a page key. A later Begin for the same key
// supersedes every earlier token.
type Token struct {
	Key        string
	Generation uint64
	PageID     uuid.UUID
}

// Tracker hands out generation tokens per page key. Generations come from a
// single counter, so a token never becomes current again once superseded.
type Tracker struct {
	mu   sync.Mutex
	next uint64
	gens map[string]uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{gens: make(map[string]uint64)}
}

// Begin starts a new generation for key and returns its token.
func (t *Tracker) Begin(key string) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.gens[key] = t.next
	return Token{Key: key, Generation: t.next, PageID: uuid.New()}
}

// Current reports whether tok is still the latest token for its key.
func (t *Tracker) Current(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gens[tok.Key] == tok.Generation
}

// Settle reports whether tok is still current and, when it is, releases the
// key so finished scans do not accumulate. A later Begin for the key starts
// from the shared counter, so tok can never become current again.
func (t *Tracker) Settle(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gens[tok.Key] != tok.Generation {
		return false
	}
	delete(t.gens, tok.Key)
	return true
}

// Len returns the number of keys with a scan in flight.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.gens)
}

// Forget drops the bookkeeping for key. Outstanding tokens for it become stale.
func (t *Tracker) Forget(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.gens, key)
}
