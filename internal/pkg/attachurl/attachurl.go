// Package attachurl cleans one spreadsheet cell of attachment links into a
// comma-joined list of fetchable http(s) URLs.
package attachurl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/samber/lo"
)

var reDriveFilePath = regexp.MustCompile(`^/file/d/([A-Za-z0-9_-]+)`)

// Split returns the trimmed, non-empty entries of a cell separated by comma,
// semicolon or line breaks.
func Split(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
	return lo.FilterMap(parts, func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
}

// Normalize keeps absolute http/https URLs in order, rewrites cloud share links
// to their direct-download form and joins the result with commas.
// Anything else is dropped silently.
func Normalize(raw string) string {
	out := make([]string, 0, 4)
	for _, p := range Split(raw) {
		u, err := url.Parse(p)
		if err != nil || u.Host == "" {
			continue
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
		default:
			continue
		}
		out = append(out, rewrite(u))
	}
	return strings.Join(out, ",")
}

// List splits an already normalized value.
func List(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, ",")
}

func rewrite(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "drive.google.com":
		if id := driveFileID(u); id != "" {
			return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
		}
	case host == "dropbox.com" || strings.HasSuffix(host, ".dropbox.com"):
		q := u.Query()
		if q.Get("dl") != "1" || q.Has("raw") {
			q.Del("raw")
			q.Set("dl", "1")
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}

func driveFileID(u *url.URL) string {
	if m := reDriveFilePath.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	switch strings.TrimSuffix(u.Path, "/") {
	case "/open", "/uc":
		return u.Query().Get("id")
	}
	return ""
}
