// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

// MockAuthenticator is a test double for [services.Authenticator]
type MockAuthenticator struct {
	Session *models.AuthSession
	Err     error
}

func (m *MockAuthenticator) Authenticate(ctx context.Context) (*models.AuthSession, error) {
	return m.Session, m.Err
}

func (m *MockAuthenticator) SaveSession(ctx context.Context, cookies []shared.Cookie) (*models.AuthSession, error) {
	return m.Session, m.Err
}

func (m *MockAuthenticator) Name() string { return "mock" }

// MockCollection is a configurable test double for [services.Collection].
//
// Each download URL can be given a distinct error via Failures; MaxInUse
// records the peak number of simultaneous Download calls.
type MockCollection struct {
	Items    []models.CollectionItem
	Digital  *models.DigitalItem
	EnumErr  error
	PageErr  error
	Failures map[string]error // download URL → error
	Delay    time.Duration    // per-download sleep, to widen overlap windows

	mu         sync.Mutex
	inFlight   int32
	MaxInUse   int32 // peak concurrent Download calls observed
	Downloads  int32 // total Download calls
	downloaded []string
}

func (m *MockCollection) Enumerate(ctx context.Context, session *models.AuthSession) ([]models.CollectionItem, error) {
	return m.Items, m.EnumErr
}

func (m *MockCollection) DigitalItem(ctx context.Context, session *models.AuthSession, pageURL string) (*models.DigitalItem, error) {
	if m.PageErr != nil {
		return nil, m.PageErr
	}
	if m.Digital != nil {
		return m.Digital, nil
	}
	return &models.DigitalItem{
		Title:    "Album",
		Artist:   "Artist",
		ItemType: "track",
		Downloads: map[string]models.DownloadOption{
			"flac": {URL: pageURL},
		},
	}, nil
}

func (m *MockCollection) Download(ctx context.Context, session *models.AuthSession, opt models.DownloadOption, destDir string, onProgress func(written, total int64)) (string, error) {
	n := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&m.MaxInUse)
		if n <= peak || atomic.CompareAndSwapInt32(&m.MaxInUse, peak, n) {
			break
		}
	}
	atomic.AddInt32(&m.Downloads, 1)

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.Delay):
		}
	}

	if err, ok := m.Failures[opt.URL]; ok && err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "track.flac")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.downloaded = append(m.downloaded, opt.URL)
	m.mu.Unlock()

	if onProgress != nil {
		onProgress(5, 5)
	}
	return path, nil
}

// Downloaded returns the download URLs fetched so far, in completion order.
func (m *MockCollection) Downloaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloaded...)
}

// MemoryManifest is an in-memory [tasks.ManifestStore]
type MemoryManifest struct {
	mu        sync.Mutex
	Data      map[string]models.CacheEntry
	LoadErr   error
	UpsertErr error
}

func NewMemoryManifest() *MemoryManifest {
	return &MemoryManifest{Data: map[string]models.CacheEntry{}}
}

func (m *MemoryManifest) Load() (map[string]models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	copied := make(map[string]models.CacheEntry, len(m.Data))
	for k, v := range m.Data {
		copied[k] = v
	}
	return copied, nil
}

func (m *MemoryManifest) Upsert(entry models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if !entry.Status.Valid() {
		return fmt.Errorf("invalid status %q", entry.Status)
	}
	m.Data[entry.ItemID] = entry
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	Calls    int32 // RoundTrip invocations, for asserting retry counts
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	atomic.AddInt32(&m.Calls, 1)
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

var _ io.ReadCloser = (*FCloser)(nil)
