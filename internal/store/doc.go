// Package store provides SQLite-backed durable storage for a timelock.
//
// The store holds:
//   - Operations: the ledger, mapping operation id to ready timestamp
//   - Settings: the minimum delay register and initialization marker
//   - Role members and role admins for the role gate
//   - Events: an append-only log of lifecycle and role events
//   - Host state: a key/value table the built-in dispatch host writes to
//
// # Transactions
//
// Every state-changing entry point runs inside exactly one transaction
// (Store.Update). Reads use Store.View. Because the connection pool is
// limited to a single connection, code running inside a transaction MUST
// use the *Tx it was given; opening a second transaction from inside the
// first blocks forever. Handlers reached through dispatch recover the
// active transaction with TxFromContext.
//
// # Ledger encoding
//
//   - A missing row means ready_timestamp 0 (unset)
//   - ir.DoneTimestamp (1) marks an executed operation
//   - Timestamps are INTEGER; values above math.MaxInt64 are rejected
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All ordering of events uses the seq column, never wall-clock time.
package store
