// Package datasource opens the raw bytes behind a pipeline input, from the
// local disk (subpackage file) or over HTTP (subpackage httpds).
package datasource

import (
	"context"
	"io"
	"strings"

	"geoetl/internal/datasource/file"
	"geoetl/internal/datasource/httpds"
)

// Source is one openable input.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)

	// Name is the path or URL, used for messages and format detection.
	Name() string
}

var (
	_ Source = (*file.Local)(nil)
	_ Source = (*httpds.URL)(nil)
)

// IsURL reports whether location is an http(s) URL.
func IsURL(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Resolve returns the Source for location: an HTTP source using client for
// http(s) URLs, a local file otherwise. A nil client gets the defaults.
func Resolve(location string, client *httpds.Client, downloadDir string) Source {
	if IsURL(location) {
		if client == nil {
			client = httpds.NewClient(httpds.Config{})
		}
		return httpds.NewURL(client, location, downloadDir)
	}
	return file.NewLocal(location)
}
