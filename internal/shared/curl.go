// Utilities for parsing cURL commands.
//
// "Copy as cURL" from the browser DevTools on any logged-in Bandcamp request
// carries the full session cookie, which makes it a convenient credential
// source when no cookie-export extension is installed.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// CurlSession represents headers and cookies extracted from a cURL command.
type CurlSession struct {
	Headers map[string]string
	Cookies []Cookie
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the session.
func ParseCurlFile(path string) (*CurlSession, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// ParseCurlCommand parses a cURL command string and extracts headers and cookies.
//
// Cookies can appear either as a -b/--cookie flag or as a Cookie header; both
// forms are recognised and returned as [Cookie] values scoped to bandcamp.com.
func ParseCurlCommand(data []byte) (*CurlSession, error) {
	curlCmd := string(data)
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	headers := make(map[string]string)
	var rawCookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(curlCmd, -1) {
		headerLine := match[1]
		if headerLine == "" {
			headerLine = match[2]
		}

		parts := strings.SplitN(headerLine, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if strings.EqualFold(key, "cookie") {
			rawCookie = value
		} else {
			headers[key] = value
		}
	}

	if m := curlCookieRe.FindStringSubmatch(curlCmd); len(m) > 1 {
		if m[1] != "" {
			rawCookie = m[1]
		} else if m[2] != "" {
			rawCookie = m[2]
		}
	}

	if rawCookie == "" {
		return nil, fmt.Errorf("%w: no cookie found in curl command", ErrMissingCredentials)
	}

	var cookies []Cookie
	for _, pair := range strings.Split(rawCookie, ";") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		cookies = append(cookies, Cookie{Domain: ".bandcamp.com", Name: parts[0], Value: parts[1]})
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: cookie header was empty", ErrMissingCredentials)
	}

	return &CurlSession{Headers: headers, Cookies: cookies}, nil
}
