// Package store provides SQLite-backed storage for evaluation pass traces.
//
// Every pass a dialog runs can be recorded with:
//   - Passes: trigger, status, content hashes and the failing provider of a
//     fatal pass
//   - Updates: the ordered Update Results the pass emitted
//   - Skips: providers skipped because of a declared failure, with the
//     provider that caused it
//
// The trace is diagnostic only. The engine never reads it back; every
// pass is computed from its request alone.
//
// # Determinism
//
//   - Ordering uses the logical seq INTEGER, never timestamps
//   - Queries order by seq and id (COLLATE BINARY)
//   - Update payloads are stored as RFC 8785 canonical JSON
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
