// Package tokenstore provides best-effort persistence for the session credential pair.
//
// A Store holds exactly one access/refresh token pair and is deliberately total:
// Read never fails (an unavailable or corrupt medium reads as "no credentials"),
// and Write/Clear swallow failures. Persistence is a durability optimization for
// surviving process restarts; session correctness never depends on it.
//
// # Implementations
//
//   - Memory: in-process fallback, always available
//   - File: JSON file with 0600 permissions, for CLI and desktop clients
//   - Redis: two keys under a shared prefix, for fleets sharing one session
//
// # Quick Start
//
//	store := tokenstore.NewFile("/home/user/.config/app/session.json")
//	pair := store.Read() // zero Pair when logged out
//
// All implementations are safe for concurrent use.
package tokenstore
