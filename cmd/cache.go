package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// CacheList prints every manifest entry, newest first.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	manifest, err := r.openManifest()
	if err != nil {
		return err
	}

	entries, err := manifest.Entries()
	if err != nil {
		return fmt.Errorf("failed to list manifest: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("Manifest is empty\n")
	}

	var totalSize int64
	for _, entry := range entries {
		size := ""
		if entry.Status == models.StatusComplete {
			if info, err := os.Stat(entry.LocalPath); err == nil {
				totalSize += info.Size()
				size = "  " + shared.FormatBytes(info.Size())
			}
		}
		downloaded := ""
		if !entry.DownloadedAt.IsZero() {
			downloaded = "  " + entry.DownloadedAt.Format(time.RFC3339)
		}
		r.writePlain("%-12s %-8s %s - %s%s%s\n", entry.ItemID, entry.Status, entry.Artist, entry.Title, size, downloaded)
	}

	r.writePlainln("%d entries, %s on disk", len(entries), shared.FormatBytes(totalSize))
	return nil
}

// CacheClear removes one entry by ID, or every entry when no ID is given.
//
// Clearing the manifest does not delete downloaded files; the next sync
// re-reconciles against what is actually on disk.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	manifest, err := r.openManifest()
	if err != nil {
		return err
	}

	itemID := cmd.StringArg("id")
	if itemID != "" {
		deleted, err := manifest.Delete(itemID)
		if err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if !deleted {
			return fmt.Errorf("%w: no manifest entry for %q", shared.ErrInvalidInput, itemID)
		}
		r.logger.Info("manifest entry removed", "item", itemID)
		return r.writePlain("✓ Removed %s\n", itemID)
	}

	count, err := manifest.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear manifest: %w", err)
	}
	r.logger.Info("manifest cleared", "entries", count)
	return r.writePlain("✓ Cleared %d entries\n", count)
}

// CachePath prints the manifest database location.
func (r *Runner) CachePath(ctx context.Context, cmd *cli.Command) error {
	return r.writePlain("%s\n", r.config.Database.Path)
}
