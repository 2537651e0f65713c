// package services defines interfaces for interacting with the Bandcamp collection API
package services

import (
	"context"

	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

// Authenticator obtains an authenticated session for the collection service.
type Authenticator interface {
	// Authenticate restores a session from stored credentials. Fails with
	// [shared.ErrMissingCredentials] when nothing is stored and with
	// [shared.ErrExpiredCredentials] when the service rejects the cookies.
	Authenticate(ctx context.Context) (*models.AuthSession, error)

	// SaveSession validates candidate cookies against the service and, on
	// success, persists them (and the detected username) for future runs.
	SaveSession(ctx context.Context, cookies []shared.Cookie) (*models.AuthSession, error)

	// Name returns the name of the service (e.g. "Bandcamp")
	Name() string
}

// Collection enumerates purchased items and downloads their files.
type Collection interface {
	// Enumerate pages through the account's collection listing and returns
	// the items in the service's most-recently-added-first order.
	Enumerate(ctx context.Context, session *models.AuthSession) ([]models.CollectionItem, error)

	// DigitalItem fetches download metadata for a single purchase page.
	DigitalItem(ctx context.Context, session *models.AuthSession, pageURL string) (*models.DigitalItem, error)

	// Download streams one download option into destDir, verifying the write
	// and moving it into place atomically. Returns the placed file's path.
	Download(ctx context.Context, session *models.AuthSession, opt models.DownloadOption, destDir string, onProgress func(written, total int64)) (string, error)
}
