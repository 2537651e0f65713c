package tasks

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/services"
	"github.com/muzik-tools/bandsync/internal/shared"
	"golang.org/x/sync/errgroup"
)

// ManifestStore is the subset of the manifest repository the engine needs.
// Satisfied by [repositories.Manifest]; tests substitute an in-memory store.
type ManifestStore interface {
	Load() (map[string]models.CacheEntry, error)
	Upsert(entry models.CacheEntry) error
}

// SyncOptions controls a single sync run.
type SyncOptions struct {
	LibraryRoot   string
	Format        string        // download format, e.g. "flac"
	Jobs          int           // concurrent download limit
	MaxAttempts   int           // per-item fetch attempts
	RetryCooldown time.Duration // base backoff, doubled per attempt
	Force         bool          // re-download regardless of manifest state
	DryRun        bool          // compute the delta but fetch nothing
	Limit         int           // cap on items fetched, 0 for unlimited
	After         time.Time     // skip items purchased before this instant
}

func (o *SyncOptions) applyDefaults() {
	if o.Format == "" {
		o.Format = "flac"
	}
	if o.Jobs <= 0 {
		o.Jobs = 3
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.RetryCooldown <= 0 {
		o.RetryCooldown = 2 * time.Second
	}
}

// SyncEngine orchestrates authenticate → enumerate → reconcile → fetch.
type SyncEngine struct {
	auth       services.Authenticator
	collection services.Collection
	manifest   ManifestStore
	logger     *log.Logger
}

// NewSyncEngine creates a SyncEngine with the provided collaborators.
func NewSyncEngine(auth services.Authenticator, collection services.Collection, manifest ManifestStore, logger *log.Logger) *SyncEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SyncEngine{
		auth:       auth,
		collection: collection,
		manifest:   manifest,
		logger:     logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls a download.
func (e *SyncEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run executes the full pipeline and returns the fetch report.
//
// Authentication, enumeration, and manifest-load failures propagate; per-item
// download failures are recorded in the report and the manifest instead.
func (e *SyncEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOptions) (*models.FetchReport, error) {
	opts.applyDefaults()

	e.sendProgress(progress, authenticateUpdate())
	session, err := e.auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	state := models.NewSyncSession(session)
	e.logger.Info("authenticated", "user", session.Username, "run", state.ID)

	e.sendProgress(progress, enumerateUpdate(session.Username))
	state.Items, err = e.collection.Enumerate(ctx, session)
	if err != nil {
		return nil, err
	}

	entries, err := e.manifest.Load()
	if err != nil {
		return nil, err
	}

	if opts.Force {
		state.Delta = state.Items
	} else {
		state.Delta = Reconcile(state.Items, entries)
	}
	skipped := len(state.Items) - len(state.Delta)

	state.Delta = filterDelta(state.Delta, opts)
	e.sendProgress(progress, reconcileUpdate(len(state.Items), len(state.Delta)))
	e.logger.Info("reconciled", "items", len(state.Items), "delta", len(state.Delta), "skipped", skipped)

	if opts.DryRun {
		report := &models.FetchReport{Skipped: skipped}
		for _, item := range state.Delta {
			e.logger.Info("would download", "item", item.ID, "title", item.Display())
		}
		e.sendProgress(progress, finalizeUpdate(report))
		return report, nil
	}

	report := e.FetchAll(ctx, progress, session, state.Delta, opts)
	report.Skipped += skipped
	report.Duration = time.Since(state.StartedAt)

	e.sendProgress(progress, finalizeUpdate(report))
	return report, nil
}

// Reconcile computes the delta: enumerated items with no manifest entry, a
// failed or pending entry, or a complete entry whose file has gone missing
// from disk. Pure over its inputs and the current filesystem snapshot, and
// idempotent: an unchanged manifest and item set yield the same delta.
func Reconcile(items []models.CollectionItem, entries map[string]models.CacheEntry) []models.CollectionItem {
	var delta []models.CollectionItem
	for _, item := range items {
		entry, ok := entries[item.ID]
		if !ok || entry.FetchEligible() {
			delta = append(delta, item)
			continue
		}
		// Self-healing: a complete entry only counts while its file exists.
		if _, err := os.Stat(entry.LocalPath); err != nil {
			delta = append(delta, item)
		}
	}
	return delta
}

// filterDelta applies the purchase-date and count filters.
func filterDelta(delta []models.CollectionItem, opts SyncOptions) []models.CollectionItem {
	filtered := delta
	if !opts.After.IsZero() {
		filtered = nil
		for _, item := range delta {
			if item.Purchased.IsZero() || !item.Purchased.Before(opts.After) {
				filtered = append(filtered, item)
			}
		}
	}
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}
	return filtered
}

// FetchAll downloads the delta with a bounded worker pool.
//
// At most opts.Jobs downloads run at once. Cancellation stops scheduling new
// items; in-flight downloads finish or fail on their own, and an aborted item
// never transitions to complete.
func (e *SyncEngine) FetchAll(ctx context.Context, progress chan<- ProgressUpdate, session *models.AuthSession, delta []models.CollectionItem, opts SyncOptions) *models.FetchReport {
	opts.applyDefaults()

	report := &models.FetchReport{}
	if len(delta) == 0 {
		return report
	}

	var mu sync.Mutex
	record := func(res models.FetchResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Err == nil {
			report.Succeeded = append(report.Succeeded, res)
		} else {
			report.Failed = append(report.Failed, res)
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(opts.Jobs)

	total := len(delta)
	for i, item := range delta {
		if ctx.Err() != nil {
			// Stop scheduling; items never started stay out of the report's
			// failed list and remain fetch-eligible next run.
			mu.Lock()
			report.Skipped += total - i
			mu.Unlock()
			break
		}

		step := i + 1
		item := item
		g.Go(func() error {
			res := e.fetchItem(ctx, progress, session, item, step, total, opts)
			record(res)
			if res.Err != nil {
				e.logger.Error("download failed", "item", item.ID, "title", item.Display(), "attempts", res.Attempts, "err", res.Err)
			} else {
				e.logger.Info("downloaded", "item", item.ID, "title", item.Display(), "path", res.Path)
			}
			return nil // per-item failures never unwind the batch
		})
	}

	g.Wait()
	return report
}

// fetchItem downloads one item with per-item retry and records the outcome in
// the manifest. The complete entry is written only after the file is placed.
func (e *SyncEngine) fetchItem(ctx context.Context, progress chan<- ProgressUpdate, session *models.AuthSession, item models.CollectionItem, step, total int, opts SyncOptions) models.FetchResult {
	res := models.FetchResult{Item: item}

	entry := models.CacheEntry{
		ItemID: item.ID,
		Title:  item.Title,
		Artist: item.Artist,
		Status: models.StatusPending,
	}
	if err := e.manifest.Upsert(entry); err != nil {
		res.Err = err
		return res
	}

	e.sendProgress(progress, downloadUpdate(step, total, ItemProgress{Item: item}))

	var path string
	var err error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if werr := waitForRetry(ctx, opts.RetryCooldown, attempt-1); werr != nil {
				err = werr
				break
			}
		}
		res.Attempts = attempt + 1

		path, err = e.fetchOnce(ctx, progress, session, item, step, total, opts)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err != nil {
		res.Err = err
		entry.RetryCount = res.Attempts
		if ctx.Err() == nil {
			// Canceled items keep their pending entry instead of failed, so a
			// clean interrupt leaves the manifest describing real outcomes.
			entry.Status = models.StatusFailed
			if uerr := e.manifest.Upsert(entry); uerr != nil {
				e.logger.Error("failed to record failure", "item", item.ID, "err", uerr)
			}
		}
		e.sendProgress(progress, downloadUpdate(step, total, ItemProgress{Item: item, Done: true, Err: err}))
		return res
	}

	entry.Status = models.StatusComplete
	entry.LocalPath = path
	entry.RetryCount = res.Attempts - 1
	entry.DownloadedAt = time.Now().UTC()
	if uerr := e.manifest.Upsert(entry); uerr != nil {
		res.Err = uerr
		return res
	}

	res.Path = path
	e.sendProgress(progress, downloadUpdate(step, total, ItemProgress{Item: item, Done: true}))
	return res
}

// fetchOnce performs a single download attempt end to end.
func (e *SyncEngine) fetchOnce(ctx context.Context, progress chan<- ProgressUpdate, session *models.AuthSession, item models.CollectionItem, step, total int, opts SyncOptions) (string, error) {
	digital, err := e.collection.DigitalItem(ctx, session, item.DownloadURL)
	if err != nil {
		return "", err
	}
	if len(digital.Downloads) == 0 {
		return "", fmt.Errorf("%w: no downloads offered for %s", shared.ErrDownloadFailed, item.ID)
	}

	opt, ok := digital.Downloads[opts.Format]
	if !ok {
		available := make([]string, 0, len(digital.Downloads))
		for format := range digital.Downloads {
			available = append(available, format)
		}
		return "", fmt.Errorf("%w: %q not in [%s]", shared.ErrFormatUnavailable, opts.Format, strings.Join(available, ", "))
	}

	destDir := digital.DestinationDir(opts.LibraryRoot)
	onProgress := func(written, totalBytes int64) {
		e.sendProgress(progress, downloadUpdate(step, total, ItemProgress{Item: item, Written: written, Total: totalBytes}))
	}

	path, err := e.collection.Download(ctx, session, opt, destDir, onProgress)
	if err != nil {
		return "", err
	}

	// Albums arrive as ZIP archives; unpack next to the archive and drop it.
	if !digital.IsSingle() && strings.EqualFold(filepath.Ext(path), ".zip") {
		if err := extractZip(path, destDir); err != nil {
			return "", fmt.Errorf("%w: extraction failed: %v", shared.ErrDownloadFailed, err)
		}
		os.Remove(path)
		return destDir, nil
	}

	return path, nil
}

// waitForRetry sleeps for the exponential cooldown, or returns early when the
// run is canceled.
func waitForRetry(ctx context.Context, cooldown time.Duration, tries int) error {
	delay := cooldown << tries
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// extractZip unpacks archive into destDir, refusing entries that escape it.
func extractZip(archive, destDir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}
