// Package store provides durable, on-device storage for the watchlist sync
// engine, backed by SQLite.
//
// Two separately namespaced stores live in one database file:
//
//   - the record store: confirmed watchlist items keyed by (user_id, item_id)
//   - the operation queue: pending replay intents keyed by operation id
//
// Both survive process restart and are shared by every open view of the same
// data directory. Safety between concurrent writers comes from per-key atomic
// upserts and SQLite's WAL mode, not from any application-level lock.
//
// Schema migrations are additive only and tracked via PRAGMA user_version;
// a version bump that only adds an index leaves existing keyed data intact.
package store
