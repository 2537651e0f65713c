// Package repositories provides the persistence layer for the download manifest.
//
// The manifest is the single piece of durable pipeline state: a SQLite table
// mapping collection-item identity to local download outcome. Entries are
// upserted as fetch attempts conclude and never deleted automatically; cache
// management is an explicit user action.
//
// database/sql with a single open connection serializes mutations from the
// concurrent download workers, and each upsert is its own transaction, so a
// crash mid-run loses at most the in-flight entry.
package repositories
