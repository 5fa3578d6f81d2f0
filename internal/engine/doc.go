// Package engine implements the timelock lifecycle engine.
//
// An operation is one call or an ordered batch of calls, plus a predecessor
// id and a salt. It is never stored whole: the engine keeps only its
// content-addressed id (see ir.HashOperation) and a ledger timestamp, and
// derives the lifecycle state from that timestamp and the clock:
//
//	0                   Unset
//	ir.DoneTimestamp    Done
//	> now               Waiting
//	<= now              Ready (boundary inclusive)
//
// # Entry Points
//
//   - Schedule / ScheduleBatch: PROPOSER; Unset -> Waiting (or Ready when
//     delay is 0); delay must be at least min_delay.
//   - Cancel: CANCELLER; Waiting or Ready -> Unset.
//   - Execute / ExecuteBatch: EXECUTOR, or anyone when EXECUTOR is held by
//     ir.OpenPrincipal; Ready -> Done once every call succeeded and the
//     predecessor, if any, is Done.
//
// Every entry point runs under one mutex and in one SQLite transaction.
// A failing call aborts the execute and rolls back everything the batch
// did, including host writes made through store.TxFromContext.
//
// # Self-Calls
//
// Calls whose target is the timelock's own principal are handled by the
// engine: update_delay, grant_role and revoke_role. While dispatching one,
// execute places a capability in the context; UpdateDelay refuses to run
// without it, so min_delay can only change through a scheduled operation.
//
// # Events
//
// All transitions append events to the store's log, which ReplayLedger can
// fold back into the ledger, min_delay and role tables.
package engine
