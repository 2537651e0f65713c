package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors (fatal to the run unless interactively resolved)
	ErrMissingCredentials  = fmt.Errorf("missing credentials")
	ErrExpiredCredentials  = fmt.Errorf("expired credentials")
	ErrNotAuthenticated    = fmt.Errorf("not authenticated")
	ErrInteractionRequired = fmt.Errorf("interactive login required")
	ErrAuthFailed          = fmt.Errorf("authentication failed")

	// Enumeration errors (fatal; a partial listing cannot produce a trusted delta)
	ErrSessionExpired  = fmt.Errorf("session expired")
	ErrPageFetchFailed = fmt.Errorf("collection page fetch failed")

	// Fetch errors (per-item; recorded in the manifest, never unwind the batch)
	ErrFormatUnavailable = fmt.Errorf("requested format unavailable")
	ErrDownloadFailed    = fmt.Errorf("download failed")
	ErrIncompleteWrite   = fmt.Errorf("incomplete download")

	// Manifest errors (fatal; corruption must halt rather than risk data loss)
	ErrManifest = fmt.Errorf("manifest error")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
