// Package models defines the domain entities for the bandsync collection pipeline.
//
// The package contains two categories of types:
//
// 1. Remote-service records, immutable once enumerated within a sync run:
//   - [CollectionItem] : One purchased item in the Bandcamp collection
//   - [DigitalItem] : Download metadata for a single purchase page
//   - [AuthSession] : An authenticated session cookie with account identity
//
// 2. Local pipeline state:
//   - [CacheEntry] : The persisted download outcome for an item
//   - [SyncSession] : Ephemeral per-invocation state (session, items, delta)
//   - [FetchReport] : The final per-run accounting of download outcomes
//
// CacheEntry values are keyed by CollectionItem identity, never by filename,
// so files may be renamed or sanitized without breaking cache correctness.
package models
