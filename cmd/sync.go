package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muzik-tools/bandsync/internal/formatter"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/muzik-tools/bandsync/internal/tasks"
	"github.com/muzik-tools/bandsync/internal/ui"
	"github.com/urfave/cli/v3"
)

const afterDateLayout = "2006-01-02"

// Sync runs the full pipeline: authenticate, enumerate, reconcile, fetch.
//
// Exit codes: 0 success, 1 partial download failure, 2 authentication
// failure, 3 enumeration failure.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.openManifest(); err != nil {
		return err
	}

	opts, err := r.syncOptions(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("ui") {
		return r.runSyncTUI(ctx, opts, cmd.String("export"))
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.printProgress(progress)
	}()

	report, err := r.engine.Run(ctx, progress, opts)
	close(progress)
	wg.Wait()

	if err != nil {
		return cli.Exit(fmt.Sprintf("sync failed: %v", err), pipelineExitCode(err))
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(report.Handoff(), true); err != nil {
			return err
		}
	} else {
		r.printReport(report, opts.DryRun)
	}

	if err := r.exportReport(report, cmd.String("export")); err != nil {
		return err
	}

	if !report.Ok() {
		return cli.Exit(fmt.Sprintf("%d download(s) failed", len(report.Failed)), 1)
	}
	return nil
}

// syncOptions resolves engine options from flags, falling back to config.
func (r *Runner) syncOptions(cmd *cli.Command) (tasks.SyncOptions, error) {
	opts := tasks.SyncOptions{
		LibraryRoot:   r.config.Library.Root,
		Format:        r.config.Library.Format,
		Jobs:          r.config.Sync.Jobs,
		MaxAttempts:   r.config.Sync.MaxAttempts,
		Force:         cmd.Bool("force"),
		DryRun:        cmd.Bool("dry-run"),
		Limit:         int(cmd.Int("limit")),
	}

	if v := cmd.String("output"); v != "" {
		opts.LibraryRoot = v
	}
	if v := cmd.String("format"); v != "" {
		opts.Format = v
	}
	if v := cmd.Int("jobs"); v > 0 {
		opts.Jobs = int(v)
	}
	if v := cmd.String("after"); v != "" {
		after, err := time.Parse(afterDateLayout, v)
		if err != nil {
			return opts, fmt.Errorf("%w: --after must be YYYY-MM-DD: %v", shared.ErrInvalidFlag, err)
		}
		opts.After = after
	}

	return opts, nil
}

// printProgress renders plain-text progress until the channel closes.
func (r *Runner) printProgress(progress <-chan tasks.ProgressUpdate) {
	lastPhase := tasks.Phase(-1)
	for update := range progress {
		item, isItem := update.Data.(tasks.ItemProgress)

		switch {
		case isItem && item.Done && item.Err != nil:
			r.writePlain("✗ %s: %v\n", item.Item.Display(), item.Err)
		case isItem && item.Done:
			r.writePlain("✓ [%d/%d] %s\n", update.Step, update.Total, item.Item.Display())
		case update.Phase != lastPhase && update.Phase != tasks.Downloading:
			r.writePlain("%s\n", update.Message)
		}
		lastPhase = update.Phase
	}
}

// printReport writes the final plain-text summary.
func (r *Runner) printReport(report *models.FetchReport, dryRun bool) {
	if dryRun {
		r.writePlainln("Dry run: nothing downloaded, %d item(s) already present", report.Skipped)
		return
	}

	r.writePlainln("Downloaded: %d  Failed: %d  Skipped: %d  (%s)",
		len(report.Succeeded), len(report.Failed), report.Skipped, report.Duration.Round(time.Second))

	for _, res := range report.Failed {
		r.writePlain("  failed after %d attempt(s): %s\n", res.Attempts, res.Item.Display())
	}
}

// exportReport writes the Markdown report and hand-off JSON files when an
// export base path was given.
func (r *Runner) exportReport(report *models.FetchReport, base string) error {
	if base == "" {
		return nil
	}

	result, err := formatter.WriteReportExport(report, base)
	if err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}

	r.logger.Info("report exported", "report", result.ReportFile, "handoff", result.HandoffFile)
	return r.writePlain("✓ Wrote %s and %s\n", result.ReportFile, result.HandoffFile)
}

// runSyncTUI runs the pipeline inside the interactive terminal view.
func (r *Runner) runSyncTUI(ctx context.Context, opts tasks.SyncOptions, exportBase string) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(shared.CacheDir() + "/bandsync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.engine, opts)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if model.Err() != nil {
		return cli.Exit(fmt.Sprintf("sync failed: %v", model.Err()), pipelineExitCode(model.Err()))
	}
	if report := model.Report(); report != nil {
		// The TUI screen is gone once the program exits; leave the summary
		// on the terminal the way the plain path does.
		r.writePlain("%s", formatter.ReportToText(report))
		if err := r.exportReport(report, exportBase); err != nil {
			return err
		}
		if !report.Ok() {
			return cli.Exit(fmt.Sprintf("%d download(s) failed", len(report.Failed)), 1)
		}
	}
	return nil
}

// pipelineExitCode maps pipeline errors onto documented exit codes:
// 2 for authentication failures, 3 for enumeration failures.
func pipelineExitCode(err error) int {
	switch {
	case errors.Is(err, shared.ErrPageFetchFailed):
		return 3
	case errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrExpiredCredentials),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrAuthFailed),
		errors.Is(err, shared.ErrSessionExpired),
		errors.Is(err, shared.ErrInteractionRequired):
		return 2
	default:
		return 1
	}
}
