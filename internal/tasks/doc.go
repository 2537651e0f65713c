// Package tasks implements the collection sync pipeline.
//
// The core abstraction is [SyncEngine], which chains authentication,
// enumeration, reconciliation against the manifest, and the bounded-parallel
// download batch. Operations emit progress updates via channels for
// non-blocking status reporting to CLI/UI layers.
//
// [Reconcile] is a pure function over the enumerated item set and a manifest
// snapshot, so the delta computation is trivially testable; all I/O lives in
// the engine.
package tasks
