package tokenstore

import "sync"

// Pair holds the current credential pair. Both tokens are opaque strings;
// a zero-valued Pair means "logged out".
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether the pair carries no credentials at all.
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Logger is an interface for optional logging of storage failures.
type Logger interface {
	Printf(format string, args ...any)
}

// Store is a best-effort persistence capability for the credential pair.
//
// Storage is a durability optimization, never a correctness dependency: a
// corrupted or unavailable medium reads as "no credentials", and write or
// clear failures are swallowed (logged at most). None of the methods can
// fail outward.
type Store interface {
	// Read returns the last persisted pair, or a zero Pair if nothing is
	// stored or the medium is unreadable.
	Read() Pair

	// Write persists the pair, replacing any previous one. Best effort.
	Write(pair Pair)

	// Clear removes any persisted pair. Idempotent, best effort.
	Clear()
}

// Memory is an in-process Store. It is the always-available fallback used
// when no durable medium is configured; contents do not survive the process.
type Memory struct {
	mu   sync.Mutex
	pair Pair
	set  bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Read returns the stored pair, or a zero Pair when nothing was written.
func (m *Memory) Read() Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Pair{}
	}
	return m.pair
}

// Write stores the pair.
func (m *Memory) Write(pair Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.set = true
}

// Clear removes the stored pair.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = Pair{}
	m.set = false
}
