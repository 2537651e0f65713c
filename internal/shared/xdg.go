// XDG Base Directory resolution.
//
// Each XDG variable is read from the environment; if unset, empty, or not
// absolute, the basedir default under $HOME is used instead.
package shared

import (
	"os"
	"path/filepath"
)

// XDGDir returns the directory for the given XDG environment variable, falling
// back to defaultRel joined to the user's home directory. Relative or empty
// values are treated as unset, per the XDG basedir rules.
func XDGDir(envVar string, defaultRel ...string) string {
	if raw := os.Getenv(envVar); raw != "" && filepath.IsAbs(raw) {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append([]string{home}, defaultRel...)...)
}

// ConfigDir returns the bandsync config directory ($XDG_CONFIG_HOME/bandsync).
// Stores the TOML config, session cookies and the saved username.
func ConfigDir() string {
	return filepath.Join(XDGDir("XDG_CONFIG_HOME", ".config"), "bandsync")
}

// CacheDir returns the bandsync cache directory ($XDG_CACHE_HOME/bandsync).
// Holds the download manifest database.
func CacheDir() string {
	return filepath.Join(XDGDir("XDG_CACHE_HOME", ".cache"), "bandsync")
}

// DataDir returns the bandsync data directory ($XDG_DATA_HOME/bandsync).
// Default parent of the download library root.
func DataDir() string {
	return filepath.Join(XDGDir("XDG_DATA_HOME", ".local", "share"), "bandsync")
}
