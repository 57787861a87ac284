// Package ledger implements the identity anchoring ledger.
//
// A Ledger maps generated addresses to immutable identity records. Each record
// carries a SHA-256 verification hash over the identity fields and the address,
// so a presented (address, hash) pair can later be re-derived and compared.
// The ledger is insert + lookup only; ClearAll wipes the whole store.
//
// Durability is delegated to a Snapshot, which is rewritten in full on every
// mutation. Implementations:
//   - FileSnapshot: JSON file of [address, record] pairs, the default.
//   - PostgresSnapshot: a single table replaced inside one transaction.
//   - RedisSnapshot: a hash plus an ordering list, replaced in MULTI/EXEC.
//   - MemorySnapshot: in-process, for tests and ephemeral runs.
package ledger
