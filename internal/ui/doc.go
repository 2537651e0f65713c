// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for collection syncing:
//  1. [SyncView] : Monitor real-time pipeline progress (authenticate, enumerate, reconcile, download)
//  2. [ResultView] : Display download counts and failed items
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the SyncEngine, providing non-blocking status reporting during downloads.
//
// Keyboard input is limited to quitting (q / ctrl+c), which cancels the run.
package ui
