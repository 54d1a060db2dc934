package httpds

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// filenameCleaner matches runs of characters unsafe in file names.
var filenameCleaner = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// HashString returns a stable SHA1 hex digest of s.
func HashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// SafeFilenameFromURL derives a filesystem-safe file name from a URL: the
// last path segment, with the cleaned query string inserted before the
// extension so that "get.csv?id=1" and "get.csv?id=2" stay apart. URLs that
// cannot be parsed or have no usable segment fall back to a hash.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	base = strings.Trim(filenameCleaner.ReplaceAllString(base, "_"), "_")
	if strings.Trim(base, ".") == "" {
		base = ""
	}
	query := strings.Trim(filenameCleaner.ReplaceAllString(u.RawQuery, "_"), "_")
	if base == "" && query == "" {
		return HashString(rawURL)
	}
	if query == "" {
		return base
	}
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "download"
	}
	return stem + "_" + query + ext
}
