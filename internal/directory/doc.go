// Package directory implements the Connection Directory component.
//
// The directory maps connection ids to connect-time attributes and is the
// only shared mutable state in the relay: horizontally-scaled handler
// instances observe a consistent view through the Postgres-backed store.
// Records are independent of each other, so no multi-key transactions are
// needed; the store only requires conditional create (reject duplicate id),
// filtered lookup, and delete.
package directory
