package main

import (
	"context"
	"fmt"

	"github.com/muzik-tools/bandsync/internal/formatter"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/urfave/cli/v3"
)

// Report emits the succeeded-path hand-off for downstream tools: every
// complete manifest entry as item ID + local path.
func (r *Runner) Report(ctx context.Context, cmd *cli.Command) error {
	manifest, err := r.openManifest()
	if err != nil {
		return err
	}

	entries, err := manifest.Entries()
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	handoff := []models.HandoffEntry{}
	for _, entry := range entries {
		if entry.Status == models.StatusComplete {
			handoff = append(handoff, models.HandoffEntry{ItemID: entry.ItemID, Path: entry.LocalPath})
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(handoff, true)
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		file, err := formatter.WriteEntriesCSV(entries, outputPath)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %s\n", file)
	}

	for _, h := range handoff {
		r.writePlain("%s\t%s\n", h.ItemID, h.Path)
	}
	r.writePlainln("%d item(s) available for hand-off", len(handoff))
	return nil
}
