// Bandcamp collection API implementation of [Collection]
//
// Bandcamp has no public API for purchases; the collection page embeds its
// state as JSON in a #pagedata data-blob attribute, and further pages come
// from the fancollection endpoint with an opaque older_than_token cursor.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

const (
	defaultBaseURL      = "https://bandcamp.com"
	collectionItemsPath = "/api/fancollection/1/collection_items"
	summaryPath         = "/api/fan/2/collection_summary"
)

// collectionItemJSON is one item record in pagedata or a pagination response.
type collectionItemJSON struct {
	SaleItemType string `json:"sale_item_type"`
	SaleItemID   int64  `json:"sale_item_id"`
	ItemTitle    string `json:"item_title"`
	BandName     string `json:"band_name"`
	ItemType     string `json:"item_type"`
	Purchased    string `json:"purchased"`
}

func (j collectionItemJSON) key() string {
	return j.SaleItemType + strconv.FormatInt(j.SaleItemID, 10)
}

// pageData is the subset of the #pagedata blob the enumerator needs.
type pageData struct {
	FanData struct {
		FanID     int64  `json:"fan_id"`
		Username  string `json:"username"`
		IsOwnPage bool   `json:"is_own_page"`
	} `json:"fan_data"`
	CollectionData struct {
		ItemCount      int               `json:"item_count"`
		BatchSize      int               `json:"batch_size"`
		LastToken      string            `json:"last_token"`
		RedownloadURLs map[string]string `json:"redownload_urls"`
	} `json:"collection_data"`
	ItemCache struct {
		Collection map[string]collectionItemJSON `json:"collection"`
	} `json:"item_cache"`
	DigitalItems []digitalItemJSON `json:"digital_items"`
}

// collectionItemsPage is a response from the fancollection pagination endpoint.
type collectionItemsPage struct {
	Items          []collectionItemJSON `json:"items"`
	RedownloadURLs map[string]string    `json:"redownload_urls"`
	MoreAvailable  bool                 `json:"more_available"`
	LastToken      string               `json:"last_token"`
}

// digitalItemJSON is the purchase-page download record.
type digitalItemJSON struct {
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	ItemType        string `json:"item_type"`
	DownloadType    string `json:"download_type"`
	DownloadTypeStr string `json:"download_type_str"`
	ReleaseDate     string `json:"package_release_date"`
	Downloads       map[string]struct {
		URL string `json:"url"`
	} `json:"downloads"`
}

// collectionSummary is the collection_summary probe response.
type collectionSummary struct {
	FanID   int64 `json:"fan_id"`
	Summary struct {
		FanID    int64  `json:"fan_id"`
		Username string `json:"username"`
	} `json:"collection_summary"`
}

// BandcampService implements [Collection] against the live service.
type BandcampService struct {
	client  *Client
	baseURL string
	logger  *log.Logger
}

// NewBandcampService creates a Bandcamp service. An empty baseURL targets the
// live service; tests point it at an httptest server.
func NewBandcampService(client *Client, baseURL string, logger *log.Logger) *BandcampService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &BandcampService{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Summary probes the collection_summary endpoint with the given cookies,
// returning the account's fan ID and username. A 401/403 means the session
// was rejected.
func (b *BandcampService) Summary(ctx context.Context, cookieHeader string) (fanID, username string, err error) {
	body, err := b.client.GetString(ctx, b.baseURL+summaryPath, cookieHeader)
	if err != nil {
		if se, ok := asStatusError(err); ok && se.AuthFailure() {
			return "", "", fmt.Errorf("%w: collection summary rejected", shared.ErrExpiredCredentials)
		}
		return "", "", fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	var summary collectionSummary
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		return "", "", fmt.Errorf("%w: malformed summary response", shared.ErrAuthFailed)
	}

	id := summary.FanID
	if id == 0 {
		id = summary.Summary.FanID
	}
	if id == 0 {
		// An anonymous visitor still gets a 200 here, just without identity.
		return "", "", fmt.Errorf("%w: no fan identity in summary", shared.ErrExpiredCredentials)
	}

	return strconv.FormatInt(id, 10), summary.Summary.Username, nil
}

// Enumerate pages through the collection and returns every purchased item in
// the service's most-recently-added-first order.
func (b *BandcampService) Enumerate(ctx context.Context, session *models.AuthSession) ([]models.CollectionItem, error) {
	blob, err := b.pageBlob(ctx, session, b.baseURL+"/"+session.Username)
	if err != nil {
		return nil, err
	}

	if !blob.FanData.IsOwnPage {
		return nil, fmt.Errorf("%w: collection page for %q is not visible to this session", shared.ErrSessionExpired, session.Username)
	}

	fanID := strconv.FormatInt(blob.FanData.FanID, 10)
	meta := make(map[string]collectionItemJSON, len(blob.ItemCache.Collection))
	for _, item := range blob.ItemCache.Collection {
		meta[item.key()] = item
	}

	var items []models.CollectionItem
	seen := make(map[string]bool)
	appendPage := func(urls map[string]string, order []collectionItemJSON) {
		// Emit in the service's item order where we have it; redownload_urls
		// alone is an unordered map.
		for _, m := range order {
			id := m.key()
			url, ok := urls[id]
			if !ok || seen[id] {
				continue
			}
			seen[id] = true
			items = append(items, newCollectionItem(id, url, m))
		}
		for id, url := range urls {
			if seen[id] {
				continue
			}
			seen[id] = true
			items = append(items, newCollectionItem(id, url, meta[id]))
		}
	}

	first := make([]collectionItemJSON, 0, len(blob.ItemCache.Collection))
	for _, m := range blob.ItemCache.Collection {
		first = append(first, m)
	}
	appendPage(blob.CollectionData.RedownloadURLs, orderByPurchase(first))

	if blob.CollectionData.ItemCount > blob.CollectionData.BatchSize {
		token := blob.CollectionData.LastToken
		for {
			page, err := b.collectionPage(ctx, session, fanID, token)
			if err != nil {
				return nil, err
			}
			appendPage(page.RedownloadURLs, page.Items)
			if !page.MoreAvailable {
				break
			}
			token = page.LastToken
		}
	}

	b.logger.Debug("enumerated collection", "items", len(items), "fan_id", fanID)
	return items, nil
}

// collectionPage fetches one pagination batch.
func (b *BandcampService) collectionPage(ctx context.Context, session *models.AuthSession, fanID, token string) (*collectionItemsPage, error) {
	payload, err := json.Marshal(map[string]string{
		"fan_id":           fanID,
		"older_than_token": token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page request: %w", err)
	}

	resp, err := b.client.Do(ctx, http.MethodPost, b.baseURL+collectionItemsPath, session.CookieHeader(), payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: page request returned HTTP %d", shared.ErrSessionExpired, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: HTTP %d", shared.ErrPageFetchFailed, resp.StatusCode)
	}

	var page collectionItemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("%w: malformed page response: %v", shared.ErrPageFetchFailed, err)
	}

	return &page, nil
}

// DigitalItem fetches download metadata for a single purchase page.
func (b *BandcampService) DigitalItem(ctx context.Context, session *models.AuthSession, pageURL string) (*models.DigitalItem, error) {
	blob, err := b.pageBlob(ctx, session, pageURL)
	if err != nil {
		return nil, err
	}

	if len(blob.DigitalItems) == 0 {
		return nil, fmt.Errorf("no digital items on %s", pageURL)
	}

	raw := blob.DigitalItems[0]
	item := &models.DigitalItem{
		Title:           raw.Title,
		Artist:          raw.Artist,
		ItemType:        raw.ItemType,
		DownloadType:    raw.DownloadType,
		DownloadTypeStr: raw.DownloadTypeStr,
		ReleaseDate:     raw.ReleaseDate,
	}
	if len(raw.Downloads) > 0 {
		item.Downloads = make(map[string]models.DownloadOption, len(raw.Downloads))
		for format, d := range raw.Downloads {
			item.Downloads[format] = models.DownloadOption{URL: d.URL}
		}
	}

	return item, nil
}

// Download streams opt into destDir through a temporary file, verifies the
// byte count against Content-Length, and renames into place. The manifest
// only ever sees fully written files because the rename is the last step.
func (b *BandcampService) Download(ctx context.Context, session *models.AuthSession, opt models.DownloadOption, destDir string, onProgress func(written, total int64)) (string, error) {
	resp, err := b.client.Do(ctx, http.MethodGet, opt.URL, session.CookieHeader(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", shared.ErrDownloadFailed, resp.StatusCode)
	}

	filename := dispositionFilename(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		return "", fmt.Errorf("%w: no Content-Disposition filename", shared.ErrDownloadFailed)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	finalPath := filepath.Join(destDir, shared.SanitizeFileName(filename))
	tmpPath := finalPath + ".part"

	written, err := b.writeBody(resp.Body, tmpPath, resp.ContentLength, onProgress)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: got %d of %d bytes", shared.ErrIncompleteWrite, written, resp.ContentLength)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	return finalPath, nil
}

// writeBody copies the response body to tmpPath, reporting progress per chunk.
func (b *BandcampService) writeBody(body io.Reader, tmpPath string, total int64, onProgress func(written, total int64)) (int64, error) {
	f, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	var w io.Writer = f
	if onProgress != nil {
		w = io.MultiWriter(f, &progressWriter{total: total, onUpdate: onProgress})
	}

	written, err := io.Copy(w, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, err)
	}
	return written, nil
}

// progressWriter counts bytes and invokes a callback; used as a tee target so
// download streaming stays a plain io.Copy.
type progressWriter struct {
	total    int64
	written  int64
	onUpdate func(written, total int64)
}

func (p *progressWriter) Write(data []byte) (int, error) {
	p.written += int64(len(data))
	p.onUpdate(p.written, p.total)
	return len(data), nil
}

// pageBlob fetches a page and decodes its #pagedata data-blob attribute.
func (b *BandcampService) pageBlob(ctx context.Context, session *models.AuthSession, url string) (*pageData, error) {
	page, err := b.client.GetString(ctx, url, session.CookieHeader())
	if err != nil {
		if se, ok := asStatusError(err); ok && se.AuthFailure() {
			return nil, fmt.Errorf("%w: %s returned HTTP %d", shared.ErrSessionExpired, url, se.Code)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetchFailed, err)
	}

	raw, err := extractPageBlob(page)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPageFetchFailed, err)
	}

	var blob pageData
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil, fmt.Errorf("%w: malformed pagedata blob: %v", shared.ErrPageFetchFailed, err)
	}

	return &blob, nil
}

// extractPageBlob pulls the JSON out of <div id="pagedata" data-blob="...">.
// The blob is HTML-escaped because it lives in an attribute.
func extractPageBlob(page string) (string, error) {
	idx := strings.Index(page, `id="pagedata"`)
	if idx == -1 {
		return "", fmt.Errorf("no #pagedata element found")
	}

	rest := page[idx:]
	const marker = `data-blob="`
	start := strings.Index(rest, marker)
	if start == -1 {
		return "", fmt.Errorf("#pagedata has no data-blob attribute")
	}
	rest = rest[start+len(marker):]

	end := strings.Index(rest, `"`)
	if end == -1 {
		return "", fmt.Errorf("unterminated data-blob attribute")
	}

	return html.UnescapeString(rest[:end]), nil
}

// dispositionFilename extracts the filename parameter from a
// Content-Disposition header value.
func dispositionFilename(disposition string) string {
	for _, part := range strings.Split(disposition, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(strings.ToLower(part), "filename=") {
			name := part[len("filename="):]
			return strings.Trim(name, `"'`)
		}
	}
	return ""
}

// newCollectionItem builds a CollectionItem from a redownload URL and
// whatever item metadata the page carried.
func newCollectionItem(id, url string, meta collectionItemJSON) models.CollectionItem {
	return models.CollectionItem{
		ID:          id,
		Title:       meta.ItemTitle,
		Artist:      meta.BandName,
		ItemType:    meta.ItemType,
		Purchased:   models.ParsePurchaseDate(meta.Purchased),
		DownloadURL: url,
	}
}

// orderByPurchase sorts item metadata newest-first, matching the ordering the
// pagination endpoint returns.
func orderByPurchase(items []collectionItemJSON) []collectionItemJSON {
	sorted := make([]collectionItemJSON, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return models.ParsePurchaseDate(sorted[i].Purchased).After(models.ParsePurchaseDate(sorted[j].Purchased))
	})
	return sorted
}

// asStatusError unwraps a [StatusError] from err if present.
func asStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
