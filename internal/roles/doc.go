// Package roles implements the role gate consumed by the timelock engine.
//
// Roles are sets of principals stored in the ledger database. Each role has
// an admin role whose holders may grant and revoke it; unless configured
// otherwise that is DEFAULT_ADMIN. Granting EXECUTOR to ir.OpenPrincipal
// opens execution to every caller, which the engine observes through
// Gate.ExecutorMode rather than by comparing principals itself.
//
// All Gate methods run against a caller-supplied *store.Tx so role changes
// commit or roll back with the surrounding operation.
package roles
