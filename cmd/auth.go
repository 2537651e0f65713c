package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/muzik-tools/bandsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginURL = "https://bandcamp.com/login"

// AuthSetup captures a browser session and persists it for later syncs.
//
// Cookies come from an exported cookie file (--cookies, Netscape or Firefox
// JSON) or a copied browser request (--curl-file). With neither, the system
// browser is opened for a manual login and cookie export.
func (r *Runner) AuthSetup(ctx context.Context, cmd *cli.Command) error {
	cookiesPath := cmd.String("cookies")
	curlFile := cmd.String("curl-file")

	if cookiesPath != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --cookies and --curl-file", shared.ErrInvalidFlag)
	}

	var cookies []shared.Cookie
	var err error

	switch {
	case cookiesPath != "":
		cookies, err = shared.LoadCookies(cookiesPath)
		if err != nil {
			return fmt.Errorf("failed to read cookie file: %w", err)
		}
		r.logger.Info("loaded cookies", "path", cookiesPath, "count", len(cookies))

	case curlFile != "":
		curl, err := shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		cookies = curl.Cookies
		r.logger.Info("parsed cURL request", "file", curlFile, "cookies", len(cookies))

	default:
		r.writePlain("Opening %s in your browser.\n", loginURL)
		r.writePlain("Log in, export your cookies (cookies.txt or Cookie Quick Manager JSON),\n")
		r.writePlain("then run: bandsync auth setup --cookies <file>\n")
		if err := shared.OpenBrowser(loginURL); err != nil {
			r.logger.Warn("could not open browser", "err", err)
		}
		return nil
	}

	session, err := r.auth.SaveSession(ctx, cookies)
	if err != nil {
		return cli.Exit(fmt.Sprintf("session rejected: %v", err), 2)
	}

	r.logger.Info("session saved", "user", session.Username, "fan_id", session.FanID)
	return r.writePlain("✓ Authenticated as %s\n", session.Username)
}

// AuthStatus probes the stored session against the collection summary endpoint.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	session, err := r.auth.Authenticate(ctx)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrMissingCredentials):
			r.writePlain("✗ No stored session. Run 'bandsync auth setup' first.\n")
		case errors.Is(err, shared.ErrExpiredCredentials), errors.Is(err, shared.ErrSessionExpired):
			r.writePlain("✗ Stored session expired. Run 'bandsync auth setup' to refresh it.\n")
		default:
			r.writePlain("✗ Session check failed: %v\n", err)
		}
		return cli.Exit("not authenticated", 2)
	}

	r.writePlain("✓ Authenticated as %s (fan %s)\n", session.Username, session.FanID)
	return nil
}
