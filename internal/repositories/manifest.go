package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

// Manifest is the SQLite-backed download manifest.
type Manifest struct {
	db *sql.DB
}

// NewManifest creates a Manifest over an open database. The schema is managed
// by [shared.RunMigrations]; callers run migrations before first use.
func NewManifest(db *sql.DB) *Manifest {
	return &Manifest{db: db}
}

const entryColumns = "item_id, title, artist, local_path, status, retry_count, downloaded_at, created_at, updated_at"

// Load reads the full manifest into a map keyed by item identity.
func (m *Manifest) Load() (map[string]models.CacheEntry, error) {
	entries, err := m.Entries()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.CacheEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ItemID] = entry
	}
	return byID, nil
}

// Entries returns all manifest entries, most recently updated first.
func (m *Manifest) Entries() ([]models.CacheEntry, error) {
	rows, err := m.db.Query("SELECT " + entryColumns + " FROM manifest_entries ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query entries: %v", shared.ErrManifest, err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %v", shared.ErrManifest, err)
	}

	return entries, nil
}

// Get retrieves a single entry by item identity.
// Returns sql.ErrNoRows wrapped in ErrManifest when the entry is absent.
func (m *Manifest) Get(itemID string) (*models.CacheEntry, error) {
	row := m.db.QueryRow("SELECT "+entryColumns+" FROM manifest_entries WHERE item_id = ?", itemID)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert inserts or updates the entry for its item identity.
func (m *Manifest) Upsert(entry models.CacheEntry) error {
	if !entry.Status.Valid() {
		return fmt.Errorf("%w: invalid status %q", shared.ErrManifest, entry.Status)
	}

	var downloadedAt any
	if !entry.DownloadedAt.IsZero() {
		downloadedAt = entry.DownloadedAt.UTC()
	}

	_, err := m.db.Exec(`
		INSERT INTO manifest_entries (item_id, title, artist, local_path, status, retry_count, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			local_path = excluded.local_path,
			status = excluded.status,
			retry_count = excluded.retry_count,
			downloaded_at = excluded.downloaded_at,
			updated_at = CURRENT_TIMESTAMP`,
		entry.ItemID, entry.Title, entry.Artist, entry.LocalPath, string(entry.Status), entry.RetryCount, downloadedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert entry %s: %v", shared.ErrManifest, entry.ItemID, err)
	}

	return nil
}

// Delete removes a single entry. Reports whether an entry was removed.
func (m *Manifest) Delete(itemID string) (bool, error) {
	res, err := m.db.Exec("DELETE FROM manifest_entries WHERE item_id = ?", itemID)
	if err != nil {
		return false, fmt.Errorf("%w: failed to delete entry %s: %v", shared.ErrManifest, itemID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", shared.ErrManifest, err)
	}
	return n > 0, nil
}

// Clear removes all entries and returns the number removed.
func (m *Manifest) Clear() (int64, error) {
	res, err := m.db.Exec("DELETE FROM manifest_entries")
	if err != nil {
		return 0, fmt.Errorf("%w: failed to clear manifest: %v", shared.ErrManifest, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrManifest, err)
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.CacheEntry, error) {
	var entry models.CacheEntry
	var status string
	var downloadedAt sql.NullTime

	err := s.Scan(&entry.ItemID, &entry.Title, &entry.Artist, &entry.LocalPath, &status, &entry.RetryCount, &downloadedAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return entry, fmt.Errorf("%w: failed to scan entry: %v", shared.ErrManifest, err)
	}

	entry.Status = models.EntryStatus(status)
	if downloadedAt.Valid {
		entry.DownloadedAt = downloadedAt.Time.UTC()
	} else {
		entry.DownloadedAt = time.Time{}
	}

	return entry, nil
}
