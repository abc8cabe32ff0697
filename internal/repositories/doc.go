// Package repositories implements SQLite persistence for the download ledger.
//
// The queue is append-oriented: entries are created when a track enters the
// pipeline and mutated through a small lifecycle state machine until they
// reach a terminal state. Entries are never deleted during a batch; [QueueRepository.Clear]
// is the explicit history reset.
//
// Sequence numbers provide stable, human-readable ordering (e.g., item #42)
// independent of UUIDs and creation timestamps. The [NextSequence] function
// atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
