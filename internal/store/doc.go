// Package store provides SQLite-backed durable storage for the host
// simulator: account state and the call journal.
//
// # Tables
//
//   - accounts: latest state of every account, keyed by base58 identity
//   - calls: append-only journal of program calls and direct account writes
//
// A call's account changes and its journal entry are written by separate
// statements; the runtime writes accounts first, so a crash between the two
// leaves state the journal cannot reproduce and `dassi replay` reports it.
//
// # Ordering
//
//   - Journal reads use ORDER BY seq ASC; seq is assigned by SQLite on insert.
//   - Account reads use ORDER BY key COLLATE BINARY for stable listings.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Unsigned 64-bit quantities (lamports, error codes) are stored bit-for-bit
// in INTEGER columns and converted back on read.
package store
