package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/muzik-tools/bandsync/internal/tasks"
	tu "github.com/muzik-tools/bandsync/internal/testing"
	"github.com/urfave/cli/v3"
)

func TestPipelineExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"missing credentials", shared.ErrMissingCredentials, 2},
		{"expired credentials", shared.ErrExpiredCredentials, 2},
		{"session expired", shared.ErrSessionExpired, 2},
		{"interaction required", shared.ErrInteractionRequired, 2},
		{"auth failed", shared.ErrAuthFailed, 2},
		{"page fetch failed", shared.ErrPageFetchFailed, 3},
		{"wrapped page fetch", fmt.Errorf("enumerate: %w", shared.ErrPageFetchFailed), 3},
		{"other error", errors.New("disk full"), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := pipelineExitCode(tc.err); got != tc.want {
				t.Errorf("expected exit code %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSyncOptions(t *testing.T) {
	// resolveOptions parses args through the real flag set and captures what
	// syncOptions resolves, without running the pipeline.
	resolveOptions := func(t *testing.T, r *Runner, args ...string) (tasks.SyncOptions, error) {
		t.Helper()
		var opts tasks.SyncOptions
		var optErr error

		cmd := syncCommand(r)
		cmd.Action = func(ctx context.Context, c *cli.Command) error {
			opts, optErr = r.syncOptions(c)
			return nil
		}
		if err := cmd.Run(context.Background(), append([]string{"sync"}, args...)); err != nil {
			t.Fatalf("command run failed: %v", err)
		}
		return opts, optErr
	}

	newRunner := func() *Runner {
		config := shared.DefaultConfig()
		config.Library.Root = "/library"
		config.Library.Format = "flac"
		config.Sync.Jobs = 3
		config.Sync.MaxAttempts = 4
		return NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})
	}

	t.Run("defaults come from config", func(t *testing.T) {
		opts, err := resolveOptions(t, newRunner())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if opts.LibraryRoot != "/library" {
			t.Errorf("expected config library root, got %q", opts.LibraryRoot)
		}
		if opts.Format != "flac" {
			t.Errorf("expected config format, got %q", opts.Format)
		}
		if opts.Jobs != 3 {
			t.Errorf("expected config jobs, got %d", opts.Jobs)
		}
		if opts.MaxAttempts != 4 {
			t.Errorf("expected config max attempts, got %d", opts.MaxAttempts)
		}
		if opts.Force || opts.DryRun {
			t.Error("expected force and dry-run off by default")
		}
	})

	t.Run("flags override config", func(t *testing.T) {
		opts, err := resolveOptions(t, newRunner(),
			"--jobs", "8", "--format", "mp3-320", "--output", "/elsewhere",
			"--force", "--dry-run", "--limit", "10")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if opts.Jobs != 8 {
			t.Errorf("expected jobs 8, got %d", opts.Jobs)
		}
		if opts.Format != "mp3-320" {
			t.Errorf("expected mp3-320, got %q", opts.Format)
		}
		if opts.LibraryRoot != "/elsewhere" {
			t.Errorf("expected /elsewhere, got %q", opts.LibraryRoot)
		}
		if !opts.Force || !opts.DryRun {
			t.Error("expected force and dry-run set")
		}
		if opts.Limit != 10 {
			t.Errorf("expected limit 10, got %d", opts.Limit)
		}
	})

	t.Run("after flag parses dates", func(t *testing.T) {
		opts, err := resolveOptions(t, newRunner(), "--after", "2025-06-01")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		if !opts.After.Equal(want) {
			t.Errorf("expected %v, got %v", want, opts.After)
		}
	})

	t.Run("invalid after date is rejected", func(t *testing.T) {
		_, err := resolveOptions(t, newRunner(), "--after", "June 1st")
		if err == nil {
			t.Fatal("expected error for invalid date")
		}
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestSyncExport(t *testing.T) {
	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "manifest.db")
	config.Library.Root = t.TempDir()

	items := []models.CollectionItem{{
		ID:          "a1",
		Title:       "Album",
		Artist:      "Band",
		ItemType:    "album",
		DownloadURL: "https://bandcamp.com/download?id=1",
	}}
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:     config,
		Output:     output,
		Auth:       &tu.MockAuthenticator{Session: &models.AuthSession{Username: "fan", FanID: "42"}},
		Collection: &tu.MockCollection{Items: items},
	})
	defer runner.Close()

	base := filepath.Join(t.TempDir(), "run")
	cmd := syncCommand(runner)
	if err := cmd.Run(context.Background(), []string{"sync", "--export", base}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	tu.AssertFileExists(t, base+"_report.md")
	tu.AssertFileExists(t, base+"_handoff.json")

	if md := tu.MustReadFile(t, base+"_report.md"); !strings.Contains(md, "**Succeeded**: 1") {
		t.Errorf("report missing success count:\n%s", md)
	}
	if handoff := tu.MustReadFile(t, base+"_handoff.json"); !strings.Contains(handoff, `"item_id": "a1"`) {
		t.Errorf("hand-off missing downloaded item:\n%s", handoff)
	}
	if !strings.Contains(output.String(), "✓ Wrote ") {
		t.Errorf("expected export confirmation, got %q", output.String())
	}
}

func TestPrintProgress(t *testing.T) {
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output})

	item := models.CollectionItem{ID: "a1", Title: "Album", Artist: "Band"}
	progress := make(chan tasks.ProgressUpdate, 10)
	progress <- tasks.ProgressUpdate{Phase: tasks.Enumerating, Message: "Enumerating collection for fan"}
	progress <- tasks.ProgressUpdate{Phase: tasks.Reconciling, Message: "2 of 5 item(s) need downloading"}
	progress <- tasks.ProgressUpdate{
		Phase: tasks.Downloading, Step: 1, Total: 2,
		Data: tasks.ItemProgress{Item: item, Done: true},
	}
	progress <- tasks.ProgressUpdate{
		Phase: tasks.Downloading, Step: 2, Total: 2,
		Data: tasks.ItemProgress{Item: item, Done: true, Err: errors.New("timeout")},
	}
	close(progress)

	runner.printProgress(progress)
	got := output.String()

	if !strings.Contains(got, "2 of 5 item(s) need downloading") {
		t.Errorf("expected reconcile message, got %q", got)
	}
	if !strings.Contains(got, "✓ [1/2] Band - Album") {
		t.Errorf("expected completion line, got %q", got)
	}
	if !strings.Contains(got, "✗ Band - Album: timeout") {
		t.Errorf("expected failure line, got %q", got)
	}
}

func TestPrintReport(t *testing.T) {
	t.Run("summarizes counts and failures", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		report := &models.FetchReport{
			Succeeded: []models.FetchResult{{Item: models.CollectionItem{ID: "a1"}}},
			Failed: []models.FetchResult{
				{Item: models.CollectionItem{ID: "a2", Title: "Gone", Artist: "Band"}, Attempts: 3},
			},
			Skipped:  7,
			Duration: 65 * time.Second,
		}

		runner.printReport(report, false)
		got := output.String()

		if !strings.Contains(got, "Downloaded: 1  Failed: 1  Skipped: 7") {
			t.Errorf("expected summary line, got %q", got)
		}
		if !strings.Contains(got, "1m5s") {
			t.Errorf("expected rounded duration, got %q", got)
		}
		if !strings.Contains(got, "failed after 3 attempt(s): Band - Gone") {
			t.Errorf("expected failure detail, got %q", got)
		}
	})

	t.Run("dry run prints nothing downloaded", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		runner.printReport(&models.FetchReport{Skipped: 3}, true)

		if !strings.Contains(output.String(), "Dry run: nothing downloaded, 3 item(s) already present") {
			t.Errorf("expected dry-run summary, got %q", output.String())
		}
	})
}
