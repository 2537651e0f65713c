package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/services"
	tu "github.com/muzik-tools/bandsync/internal/testing"
)

func testItems(n int) []models.CollectionItem {
	items := make([]models.CollectionItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, models.CollectionItem{
			ID:          fmt.Sprintf("a%d", i+1),
			Title:       fmt.Sprintf("Album %d", i+1),
			Artist:      "Band",
			ItemType:    "album",
			Purchased:   time.Date(2024, time.Month(i%12+1), 1, 0, 0, 0, 0, time.UTC),
			DownloadURL: fmt.Sprintf("https://bandcamp.com/download?id=%d", i+1),
		})
	}
	return items
}

func testEngine(collection services.Collection, manifest ManifestStore) *SyncEngine {
	auth := &tu.MockAuthenticator{Session: &models.AuthSession{Username: "fan", FanID: "42"}}
	return NewSyncEngine(auth, collection, manifest, nil)
}

func testOpts(t *testing.T) SyncOptions {
	t.Helper()
	return SyncOptions{
		LibraryRoot:   t.TempDir(),
		Format:        "flac",
		Jobs:          2,
		MaxAttempts:   2,
		RetryCooldown: time.Millisecond,
	}
}

func TestReconcile(t *testing.T) {
	items := testItems(4)

	t.Run("includes unknown, pending and failed items", func(t *testing.T) {
		dir := t.TempDir()
		onDisk := filepath.Join(dir, "present.flac")
		if err := os.WriteFile(onDisk, []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		entries := map[string]models.CacheEntry{
			"a1": {ItemID: "a1", Status: models.StatusComplete, LocalPath: onDisk},
			"a2": {ItemID: "a2", Status: models.StatusFailed},
			"a3": {ItemID: "a3", Status: models.StatusPending},
			// a4 has no entry
		}

		delta := Reconcile(items, entries)
		if len(delta) != 3 {
			t.Fatalf("expected 3 delta items, got %d", len(delta))
		}
		for _, item := range delta {
			if item.ID == "a1" {
				t.Error("complete item with file on disk should not be in delta")
			}
		}
	})

	t.Run("self-heals complete entries with missing files", func(t *testing.T) {
		entries := map[string]models.CacheEntry{
			"a1": {ItemID: "a1", Status: models.StatusComplete, LocalPath: filepath.Join(t.TempDir(), "gone.flac")},
		}

		delta := Reconcile(items[:1], entries)
		if len(delta) != 1 {
			t.Fatalf("expected missing-file item in delta, got %d items", len(delta))
		}
	})

	t.Run("idempotent over unchanged inputs", func(t *testing.T) {
		entries := map[string]models.CacheEntry{
			"a2": {ItemID: "a2", Status: models.StatusFailed},
		}

		first := Reconcile(items, entries)
		second := Reconcile(items, entries)

		if len(first) != len(second) {
			t.Fatalf("delta size changed between runs: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("delta order changed at %d: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("empty manifest yields full delta", func(t *testing.T) {
		delta := Reconcile(items, map[string]models.CacheEntry{})
		if len(delta) != len(items) {
			t.Errorf("expected full delta, got %d of %d", len(delta), len(items))
		}
	})
}

func TestFilterDelta(t *testing.T) {
	items := testItems(6)

	t.Run("after filter drops older purchases", func(t *testing.T) {
		cutoff := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		filtered := filterDelta(items, SyncOptions{After: cutoff})

		for _, item := range filtered {
			if item.Purchased.Before(cutoff) {
				t.Errorf("item %s purchased %v should be filtered", item.ID, item.Purchased)
			}
		}
		if len(filtered) != 3 {
			t.Errorf("expected 3 items after cutoff, got %d", len(filtered))
		}
	})

	t.Run("items without purchase dates survive the after filter", func(t *testing.T) {
		undated := []models.CollectionItem{{ID: "a1"}}
		filtered := filterDelta(undated, SyncOptions{After: time.Now()})
		if len(filtered) != 1 {
			t.Error("undated item should not be filtered")
		}
	})

	t.Run("limit caps the delta", func(t *testing.T) {
		filtered := filterDelta(items, SyncOptions{Limit: 2})
		if len(filtered) != 2 {
			t.Fatalf("expected 2 items, got %d", len(filtered))
		}
		if filtered[0].ID != items[0].ID {
			t.Error("limit should keep the head of the delta")
		}
	})

	t.Run("zero limit means unlimited", func(t *testing.T) {
		if got := filterDelta(items, SyncOptions{}); len(got) != len(items) {
			t.Errorf("expected all items, got %d", len(got))
		}
	})
}

func TestRun(t *testing.T) {
	t.Run("downloads everything on first sync", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(3)}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)

		report, err := engine.Run(context.Background(), nil, testOpts(t))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if len(report.Succeeded) != 3 {
			t.Fatalf("expected 3 successes, got %d", len(report.Succeeded))
		}
		if !report.Ok() {
			t.Error("expected clean report")
		}

		for _, item := range collection.Items {
			entry, ok := manifest.Data[item.ID]
			if !ok {
				t.Errorf("no manifest entry for %s", item.ID)
				continue
			}
			if entry.Status != models.StatusComplete {
				t.Errorf("expected complete entry for %s, got %q", item.ID, entry.Status)
			}
			if entry.LocalPath == "" {
				t.Errorf("expected local path for %s", item.ID)
			}
			if _, err := os.Stat(entry.LocalPath); err != nil {
				t.Errorf("manifest path for %s missing on disk: %v", item.ID, err)
			}
			if entry.DownloadedAt.IsZero() {
				t.Errorf("expected download timestamp for %s", item.ID)
			}
		}
	})

	t.Run("second run downloads nothing", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(3)}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)
		opts := testOpts(t)

		if _, err := engine.Run(context.Background(), nil, opts); err != nil {
			t.Fatalf("first run failed: %v", err)
		}
		first := atomic.LoadInt32(&collection.Downloads)

		report, err := engine.Run(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		if atomic.LoadInt32(&collection.Downloads) != first {
			t.Error("second run should not download anything")
		}
		if report.Skipped != 3 {
			t.Errorf("expected 3 skipped, got %d", report.Skipped)
		}
	})

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		items := testItems(3)
		collection := &tu.MockCollection{
			Items:    items,
			Failures: map[string]error{items[1].DownloadURL: errors.New("server melted")},
		}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)

		report, err := engine.Run(context.Background(), nil, testOpts(t))
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if len(report.Succeeded) != 2 {
			t.Errorf("expected 2 successes, got %d", len(report.Succeeded))
		}
		if len(report.Failed) != 1 {
			t.Fatalf("expected 1 failure, got %d", len(report.Failed))
		}
		if report.Failed[0].Item.ID != "a2" {
			t.Errorf("expected a2 to fail, got %s", report.Failed[0].Item.ID)
		}
		if report.Failed[0].Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", report.Failed[0].Attempts)
		}

		entry := manifest.Data["a2"]
		if entry.Status != models.StatusFailed {
			t.Errorf("expected failed manifest entry, got %q", entry.Status)
		}
		if entry.LocalPath != "" {
			t.Error("failed entry should have no local path")
		}
		if entry.RetryCount != 2 {
			t.Errorf("expected retry count 2, got %d", entry.RetryCount)
		}
	})

	t.Run("failed items are retried next run", func(t *testing.T) {
		items := testItems(2)
		collection := &tu.MockCollection{
			Items:    items,
			Failures: map[string]error{items[0].DownloadURL: errors.New("flaky")},
		}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)
		opts := testOpts(t)

		if _, err := engine.Run(context.Background(), nil, opts); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		// The outage clears before the next run.
		collection.Failures = nil
		report, err := engine.Run(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		if len(report.Succeeded) != 1 {
			t.Fatalf("expected the failed item to be retried, got %d successes", len(report.Succeeded))
		}
		if report.Succeeded[0].Item.ID != "a1" {
			t.Errorf("expected a1 retried, got %s", report.Succeeded[0].Item.ID)
		}
		if manifest.Data["a1"].Status != models.StatusComplete {
			t.Errorf("expected a1 complete after retry, got %q", manifest.Data["a1"].Status)
		}
	})

	t.Run("force re-downloads complete items", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(2)}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)
		opts := testOpts(t)

		if _, err := engine.Run(context.Background(), nil, opts); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		opts.Force = true
		report, err := engine.Run(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("forced run failed: %v", err)
		}
		if len(report.Succeeded) != 2 {
			t.Errorf("expected forced re-download of both items, got %d", len(report.Succeeded))
		}
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(3)}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)
		opts := testOpts(t)
		opts.DryRun = true

		report, err := engine.Run(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}

		if atomic.LoadInt32(&collection.Downloads) != 0 {
			t.Error("dry run should not download")
		}
		if len(manifest.Data) != 0 {
			t.Error("dry run should not write manifest entries")
		}
		if len(report.Succeeded) != 0 || len(report.Failed) != 0 {
			t.Error("dry run report should be empty")
		}
	})

	t.Run("authentication failure propagates", func(t *testing.T) {
		auth := &tu.MockAuthenticator{Err: errors.New("no session")}
		engine := NewSyncEngine(auth, &tu.MockCollection{}, tu.NewMemoryManifest(), nil)

		if _, err := engine.Run(context.Background(), nil, testOpts(t)); err == nil {
			t.Error("expected authentication error")
		}
	})

	t.Run("enumeration failure propagates", func(t *testing.T) {
		collection := &tu.MockCollection{EnumErr: errors.New("page gone")}
		engine := testEngine(collection, tu.NewMemoryManifest())

		if _, err := engine.Run(context.Background(), nil, testOpts(t)); err == nil {
			t.Error("expected enumeration error")
		}
	})

	t.Run("emits progress updates in phase order", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(1)}
		engine := testEngine(collection, tu.NewMemoryManifest())

		progress := make(chan ProgressUpdate, 50)
		if _, err := engine.Run(context.Background(), progress, testOpts(t)); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}
		if len(phases) < 4 {
			t.Fatalf("expected at least 4 updates, got %d", len(phases))
		}
		if phases[0] != Authenticating {
			t.Errorf("expected Authenticating first, got %v", phases[0])
		}
		if phases[len(phases)-1] != Finalizing {
			t.Errorf("expected Finalizing last, got %v", phases[len(phases)-1])
		}
	})
}

func TestFetchAll(t *testing.T) {
	session := &models.AuthSession{Username: "fan", FanID: "42"}

	t.Run("respects the concurrency limit", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(8), Delay: 20 * time.Millisecond}
		engine := testEngine(collection, tu.NewMemoryManifest())
		opts := testOpts(t)
		opts.Jobs = 2

		report := engine.FetchAll(context.Background(), nil, session, collection.Items, opts)

		if len(report.Succeeded) != 8 {
			t.Fatalf("expected 8 successes, got %d", len(report.Succeeded))
		}
		if peak := atomic.LoadInt32(&collection.MaxInUse); peak > 2 {
			t.Errorf("concurrency limit exceeded: peak %d workers", peak)
		}
	})

	t.Run("canceled context stops scheduling", func(t *testing.T) {
		collection := &tu.MockCollection{Items: testItems(5)}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report := engine.FetchAll(ctx, nil, session, collection.Items, testOpts(t))

		if atomic.LoadInt32(&collection.Downloads) != 0 {
			t.Error("canceled run should not download")
		}
		if report.Skipped != 5 {
			t.Errorf("expected 5 skipped, got %d", report.Skipped)
		}
		for id, entry := range manifest.Data {
			if entry.Status == models.StatusFailed {
				t.Errorf("canceled item %s should not be marked failed", id)
			}
		}
	})

	t.Run("empty delta is a no-op", func(t *testing.T) {
		collection := &tu.MockCollection{}
		engine := testEngine(collection, tu.NewMemoryManifest())

		report := engine.FetchAll(context.Background(), nil, session, nil, testOpts(t))
		if len(report.Succeeded) != 0 || len(report.Failed) != 0 {
			t.Error("expected empty report for empty delta")
		}
	})

	t.Run("unavailable format fails the item", func(t *testing.T) {
		items := testItems(1)
		collection := &tu.MockCollection{
			Items: items,
			Digital: &models.DigitalItem{
				Title: "Album", Artist: "Band", ItemType: "track",
				Downloads: map[string]models.DownloadOption{
					"mp3-320": {URL: items[0].DownloadURL},
				},
			},
		}
		manifest := tu.NewMemoryManifest()
		engine := testEngine(collection, manifest)

		report := engine.FetchAll(context.Background(), nil, session, items, testOpts(t))
		if len(report.Failed) != 1 {
			t.Fatalf("expected format failure, got %d failures", len(report.Failed))
		}
		if manifest.Data["a1"].Status != models.StatusFailed {
			t.Errorf("expected failed entry, got %q", manifest.Data["a1"].Status)
		}
	})
}

// flakyCollection fails the first download attempt per URL and then recovers.
type flakyCollection struct {
	tu.MockCollection
	attempts map[string]*int32
}

func (f *flakyCollection) Download(ctx context.Context, session *models.AuthSession, opt models.DownloadOption, destDir string, onProgress func(written, total int64)) (string, error) {
	counter, ok := f.attempts[opt.URL]
	if ok && atomic.AddInt32(counter, 1) == 1 {
		return "", errors.New("transient failure")
	}
	return f.MockCollection.Download(ctx, session, opt, destDir, onProgress)
}

func TestFetchRetries(t *testing.T) {
	items := testItems(1)
	var count int32
	collection := &flakyCollection{
		MockCollection: tu.MockCollection{Items: items},
		attempts:       map[string]*int32{items[0].DownloadURL: &count},
	}
	manifest := tu.NewMemoryManifest()
	engine := testEngine(collection, manifest)

	session := &models.AuthSession{Username: "fan"}
	report := engine.FetchAll(context.Background(), nil, session, items, testOpts(t))

	if len(report.Succeeded) != 1 {
		t.Fatalf("expected success after retry, got %d successes, %d failures", len(report.Succeeded), len(report.Failed))
	}
	if report.Succeeded[0].Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", report.Succeeded[0].Attempts)
	}
	if manifest.Data["a1"].Status != models.StatusComplete {
		t.Errorf("expected complete entry after retry, got %q", manifest.Data["a1"].Status)
	}
	if manifest.Data["a1"].RetryCount != 1 {
		t.Errorf("expected 1 recorded retry, got %d", manifest.Data["a1"].RetryCount)
	}
}
