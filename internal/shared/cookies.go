// Utilities for reading and writing browser-exported cookie files.
//
// Two formats are supported: Netscape/Mozilla cookies.txt (tab-separated,
// seven columns, the format yt-dlp and curl consume) and the Firefox
// "Cookie Quick Manager" JSON export.
package shared

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Cookie is a single browser cookie scoped to a domain.
type Cookie struct {
	Domain string
	Name   string
	Value  string
}

// LoadCookies reads cookies from a JSON or Netscape file, dispatching on the
// file extension.
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return parseJSONCookies(data)
	}
	return parseNetscapeCookies(data), nil
}

// CookieHeader joins cookies into a single Cookie request header value.
func CookieHeader(cookies []Cookie) string {
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name != "" {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	return strings.Join(pairs, "; ")
}

// parseNetscapeCookies parses the tab-separated cookies.txt format. Comment
// lines and malformed rows are skipped.
func parseNetscapeCookies(data []byte) []Cookie {
	var cookies []Cookie
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != 7 {
			continue
		}
		cookies = append(cookies, Cookie{Domain: parts[0], Name: parts[5], Value: parts[6]})
	}
	return cookies
}

type jsonCookie struct {
	HostRaw    string `json:"Host raw"`
	NameRaw    string `json:"Name raw"`
	ContentRaw string `json:"Content raw"`
}

// parseJSONCookies parses the Firefox Cookie Quick Manager export format.
func parseJSONCookies(data []byte) ([]Cookie, error) {
	var raw []jsonCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON cookies: %w", err)
	}

	var cookies []Cookie
	for _, c := range raw {
		if c.NameRaw == "" {
			continue
		}
		host := c.HostRaw
		if !strings.HasPrefix(host, "http") {
			host = "https://" + host
		}
		domain := "bandcamp.com"
		if u, err := url.Parse(host); err == nil && u.Hostname() != "" {
			domain = u.Hostname()
		}
		cookies = append(cookies, Cookie{Domain: domain, Name: c.NameRaw, Value: c.ContentRaw})
	}
	return cookies, nil
}

// WriteNetscapeCookies serializes cookies to the cookies.txt format at dest,
// creating parent directories as needed.
func WriteNetscapeCookies(cookies []Cookie, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create cookies directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	for _, c := range cookies {
		includeSub := "FALSE"
		if strings.HasPrefix(c.Domain, ".") {
			includeSub = "TRUE"
		}
		fmt.Fprintf(&b, "%s\t%s\t/\tTRUE\t0\t%s\t%s\n", c.Domain, includeSub, c.Name, c.Value)
	}

	if err := os.WriteFile(dest, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write cookies file: %w", err)
	}
	return nil
}
