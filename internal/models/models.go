// package models defines the data model for the Bandcamp collection sync tool
package models

import (
	"path/filepath"
	"time"

	"github.com/muzik-tools/bandsync/internal/shared"
)

// PurchaseDateFormat is the timestamp layout Bandcamp uses for purchase and
// release dates (e.g. "14 Feb 2024 09:30:00 GMT").
const PurchaseDateFormat = "02 Jan 2006 15:04:05 MST"

// ParsePurchaseDate parses a Bandcamp purchase/release date string.
// Returns the zero time if the string does not match the expected layout.
func ParsePurchaseDate(s string) time.Time {
	t, err := time.Parse(PurchaseDateFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// CollectionItem is one purchased item enumerated from the collection.
//
// ID is the service's stable identity ({sale_item_type}{sale_item_id}, e.g.
// "a1234567"). DownloadURL is the authenticated redownload page for the item;
// per-format file URLs live on the [DigitalItem] fetched from that page.
type CollectionItem struct {
	ID          string
	Title       string
	Artist      string
	ItemType    string // "album" or "track"
	Purchased   time.Time
	DownloadURL string
}

// Display returns "Artist - Title" or the item ID when metadata is missing.
func (i CollectionItem) Display() string {
	if i.Artist == "" && i.Title == "" {
		return i.ID
	}
	return i.Artist + " - " + i.Title
}

// DownloadOption is one downloadable encoding of a digital item. Expected
// sizes come from Content-Length at download time; the purchase page only
// carries a display string.
type DownloadOption struct {
	URL string
}

// DigitalItem is the download metadata scraped from an item's purchase page.
type DigitalItem struct {
	Title           string
	Artist          string
	ItemType        string
	DownloadType    string
	DownloadTypeStr string
	ReleaseDate     string
	Downloads       map[string]DownloadOption // keyed by format, e.g. "flac"
}

// IsSingle reports whether the item is a lone track rather than an album.
// Single downloads arrive as bare audio files; albums arrive as ZIP archives.
func (d DigitalItem) IsSingle() bool {
	return d.DownloadType == "t" || d.DownloadTypeStr == "track" || d.ItemType == "track"
}

// ReleaseYear returns the four-digit release year, or "0000" when unknown.
func (d DigitalItem) ReleaseYear() string {
	t := ParsePurchaseDate(d.ReleaseDate)
	if t.IsZero() {
		return "0000"
	}
	return t.Format("2006")
}

// DestinationDir computes the library directory for this item under root,
// shaped as Artist/Title (Year) with filesystem-unsafe characters replaced.
func (d DigitalItem) DestinationDir(root string) string {
	return filepath.Join(
		root,
		shared.SanitizeFileName(d.Artist),
		shared.SanitizeFileName(d.Title)+" ("+d.ReleaseYear()+")",
	)
}

// AuthSession is an authenticated Bandcamp session.
//
// Read-only once constructed; the FanID drives collection pagination and the
// cookies authenticate every request in the run.
type AuthSession struct {
	Username string
	FanID    string
	Cookies  []shared.Cookie
}

// CookieHeader returns the session cookies as a single request header value.
func (s *AuthSession) CookieHeader() string {
	return shared.CookieHeader(s.Cookies)
}

// EntryStatus is the lifecycle state of a manifest entry.
type EntryStatus string

const (
	StatusPending  EntryStatus = "pending"
	StatusComplete EntryStatus = "complete"
	StatusFailed   EntryStatus = "failed"
)

// Valid reports whether s is a known status value.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusComplete, StatusFailed:
		return true
	}
	return false
}

// CacheEntry records the local download outcome for a collection item.
//
// Entries are created on the first fetch attempt, updated on each subsequent
// attempt, and never deleted automatically.
type CacheEntry struct {
	ItemID       string
	Title        string
	Artist       string
	LocalPath    string
	Status       EntryStatus
	RetryCount   int
	DownloadedAt time.Time // zero unless Status is complete
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FetchEligible reports whether the entry leaves its item eligible for
// download: failed and pending entries are retryable, complete ones are not.
func (e CacheEntry) FetchEligible() bool {
	return e.Status != StatusComplete
}

// SyncSession is the ephemeral state of one sync invocation. Discarded after
// the run; never persisted.
type SyncSession struct {
	ID        string
	Session   *AuthSession
	Items     []CollectionItem
	Delta     []CollectionItem
	StartedAt time.Time
}

// NewSyncSession creates a SyncSession with a fresh run ID.
func NewSyncSession(auth *AuthSession) *SyncSession {
	return &SyncSession{
		ID:        shared.GenerateID(),
		Session:   auth,
		StartedAt: time.Now().UTC(),
	}
}

// FetchResult is the outcome of downloading a single item.
type FetchResult struct {
	Item     CollectionItem
	Path     string // directory the item landed in, empty on failure
	Attempts int
	Err      error
}

// HandoffEntry is the stable shape handed to downstream collaborators
// (splitter, organizer): item identity plus the local path it landed at.
type HandoffEntry struct {
	ItemID string `json:"item_id"`
	Path   string `json:"path"`
}

// FetchReport is the final accounting for a fetch batch.
type FetchReport struct {
	Succeeded []FetchResult
	Failed    []FetchResult
	Skipped   int // items excluded by reconciliation or filters
	Duration  time.Duration
}

// Handoff returns the succeeded items in the documented hand-off shape.
func (r *FetchReport) Handoff() []HandoffEntry {
	entries := make([]HandoffEntry, 0, len(r.Succeeded))
	for _, res := range r.Succeeded {
		entries = append(entries, HandoffEntry{ItemID: res.Item.ID, Path: res.Path})
	}
	return entries
}

// Ok reports whether every attempted download succeeded.
func (r *FetchReport) Ok() bool {
	return len(r.Failed) == 0
}
