// Package splitcache stores archived market history for item ids that have been
// retired by a split.
//
// Rows are keyed by (region_id, type_id, date) and always hold values in the units
// of the id they were recorded under. Callers convert them into the other id's
// units with ApplyTransform.
//
// Backends:
//   - PGStore: PostgreSQL table split_cache, written with pgx batches
//   - MemoryStore: in-process map for tests and local runs
//
// Writes upsert on the primary key (last write wins). Replace additionally clears
// the pair from the earliest written date onward inside the same transaction.
package splitcache
