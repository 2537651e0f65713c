// Cookie-based implementation of [Authenticator]
//
// Bandcamp has no OAuth surface; the only way in is the browser session
// cookie. The authenticator keeps that fact contained: everything downstream
// sees an opaque [models.AuthSession].
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/muzik-tools/bandsync/internal/models"
	"github.com/muzik-tools/bandsync/internal/shared"
)

// usernameFile stores the detected account username next to the cookies.
const usernameFile = "username"

// CookieAuthenticator restores sessions from a persisted cookie file and
// validates them against the live service before handing them out.
type CookieAuthenticator struct {
	cookiesPath string
	username    string // config override; detected from the service when empty
	service     *BandcampService
	logger      *log.Logger
}

// NewCookieAuthenticator creates an authenticator reading cookies from
// cookiesPath. username may be empty, in which case the service-reported
// username (persisted on first success) is used.
func NewCookieAuthenticator(cookiesPath, username string, service *BandcampService, logger *log.Logger) *CookieAuthenticator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CookieAuthenticator{
		cookiesPath: cookiesPath,
		username:    username,
		service:     service,
		logger:      logger,
	}
}

func (a *CookieAuthenticator) Name() string { return "Bandcamp" }

// Authenticate loads the persisted cookies and probes the collection summary
// endpoint to prove the session is still live.
//
// A missing cookie file fails with [shared.ErrMissingCredentials] and a
// rejected session with [shared.ErrExpiredCredentials]; both are remediated
// by re-running `bandsync auth setup`.
func (a *CookieAuthenticator) Authenticate(ctx context.Context) (*models.AuthSession, error) {
	if _, err := os.Stat(a.cookiesPath); err != nil {
		return nil, fmt.Errorf("%w: no cookie file at %s", shared.ErrMissingCredentials, a.cookiesPath)
	}

	cookies, err := shared.LoadCookies(a.cookiesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMissingCredentials, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: cookie file %s is empty", shared.ErrMissingCredentials, a.cookiesPath)
	}

	return a.validate(ctx, cookies)
}

// SaveSession validates candidate cookies and persists them for future runs.
func (a *CookieAuthenticator) SaveSession(ctx context.Context, cookies []shared.Cookie) (*models.AuthSession, error) {
	session, err := a.validate(ctx, cookies)
	if err != nil {
		return nil, err
	}

	if err := shared.WriteNetscapeCookies(cookies, a.cookiesPath); err != nil {
		return nil, fmt.Errorf("failed to persist cookies: %w", err)
	}
	if session.Username != "" {
		path := filepath.Join(filepath.Dir(a.cookiesPath), usernameFile)
		if err := os.WriteFile(path, []byte(session.Username+"\n"), 0o644); err != nil {
			a.logger.Warn("failed to persist username", "err", err)
		}
	}

	a.logger.Info("session saved", "user", session.Username, "cookies", a.cookiesPath)
	return session, nil
}

// validate probes the service with the cookies and assembles the session.
func (a *CookieAuthenticator) validate(ctx context.Context, cookies []shared.Cookie) (*models.AuthSession, error) {
	fanID, username, err := a.service.Summary(ctx, shared.CookieHeader(cookies))
	if err != nil {
		return nil, err
	}

	if a.username != "" {
		username = a.username
	}
	if username == "" {
		username = a.storedUsername()
	}
	if username == "" {
		// The summary endpoint omits the username for some accounts; without
		// it the collection page URL cannot be built.
		return nil, fmt.Errorf("%w: username unknown; set credentials.bandcamp.username in config", shared.ErrInteractionRequired)
	}

	return &models.AuthSession{
		Username: username,
		FanID:    fanID,
		Cookies:  cookies,
	}, nil
}

// storedUsername returns the username persisted by a previous SaveSession.
func (a *CookieAuthenticator) storedUsername() string {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(a.cookiesPath), usernameFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
