// Package store provides SQLite-backed persistence for process instances.
//
// Each instance records the process it runs and the definition file it was
// started from. Every mutation appends a snapshot: the serialized workflow
// state plus the attributes of its live branches, stamped with a logical
// clock seq.
//
// # Patterns
//
//   - Append-only: snapshots are never updated; the latest seq wins.
//   - Logical time: all ordering uses seq INTEGER, never timestamps.
//   - Deterministic queries: ORDER BY seq ASC, id ASC COLLATE BINARY.
//   - Idempotent writes: ON CONFLICT DO NOTHING on primary keys.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
