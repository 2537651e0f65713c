package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	t.Run("cookie header single quotes", func(t *testing.T) {
		cmd := `curl 'https://bandcamp.com/username' \
  -H 'User-Agent: Mozilla/5.0' \
  -H 'Cookie: identity=abc123; session=xyz'`

		session, err := ParseCurlCommand([]byte(cmd))
		if err != nil {
			t.Fatalf("failed to parse curl command: %v", err)
		}

		if len(session.Cookies) != 2 {
			t.Fatalf("expected 2 cookies, got %d", len(session.Cookies))
		}
		if session.Cookies[0].Name != "identity" || session.Cookies[0].Value != "abc123" {
			t.Errorf("unexpected cookie: %+v", session.Cookies[0])
		}
		if session.Cookies[0].Domain != ".bandcamp.com" {
			t.Errorf("expected .bandcamp.com domain, got %q", session.Cookies[0].Domain)
		}
		if session.Headers["User-Agent"] != "Mozilla/5.0" {
			t.Errorf("expected User-Agent header, got %v", session.Headers)
		}
	})

	t.Run("cookie flag", func(t *testing.T) {
		cmd := `curl "https://bandcamp.com/username" -b "identity=abc123"`

		session, err := ParseCurlCommand([]byte(cmd))
		if err != nil {
			t.Fatalf("failed to parse curl command: %v", err)
		}

		if len(session.Cookies) != 1 {
			t.Fatalf("expected 1 cookie, got %d", len(session.Cookies))
		}
		if session.Cookies[0].Name != "identity" {
			t.Errorf("unexpected cookie: %+v", session.Cookies[0])
		}
	})

	t.Run("no cookie present", func(t *testing.T) {
		cmd := `curl 'https://bandcamp.com' -H 'Accept: text/html'`

		_, err := ParseCurlCommand([]byte(cmd))
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("empty cookie value", func(t *testing.T) {
		cmd := `curl 'https://bandcamp.com' -H 'Cookie: ;'`

		_, err := ParseCurlCommand([]byte(cmd))
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("reads and parses file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "request.sh")
		cmd := `curl 'https://bandcamp.com/username' -H 'Cookie: identity=abc'`
		if err := os.WriteFile(path, []byte(cmd), 0o600); err != nil {
			t.Fatalf("failed to write fixture: %v", err)
		}

		session, err := ParseCurlFile(path)
		if err != nil {
			t.Fatalf("failed to parse curl file: %v", err)
		}
		if len(session.Cookies) != 1 {
			t.Errorf("expected 1 cookie, got %d", len(session.Cookies))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ParseCurlFile(filepath.Join(t.TempDir(), "absent.sh")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
