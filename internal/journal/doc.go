// Package journal records automaton runs in SQLite.
//
// The journal is an append-only observability log: one row per run and one
// row per reply, keyed by the run ID and the reply's logical sequence
// number. It is never read back into an automaton; state persistence is out
// of scope.
//
// # Ordering
//
// Replies are always returned ORDER BY seq ASC and runs ORDER BY ordinal
// ASC, so reading a journal is deterministic regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability and performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: replies must belong to a run
package journal
