package httpds

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"geoetl/internal/ctxlog"
)

// URL is a data source fetched over HTTP. With a download directory the
// body is first saved to disk and the local copy is opened, which keeps
// the raw download around for inspection.
type URL struct {
	client      *Client
	url         string
	downloadDir string
}

// NewURL returns a source for url. downloadDir may be empty.
func NewURL(client *Client, url, downloadDir string) *URL {
	return &URL{client: client, url: url, downloadDir: downloadDir}
}

// Name returns the URL.
func (u *URL) Name() string { return u.url }

// Open starts the download.
func (u *URL) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := u.client.Get(ctx, u.url, nil)
	if err != nil {
		return nil, err
	}
	if u.downloadDir == "" {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	path, err := u.save(resp.Body)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("httpds: downloaded", "url", u.url, "path", path)
	return os.Open(path)
}

// Head returns up to n leading bytes without a full download.
func (u *URL) Head(ctx context.Context, n int) ([]byte, error) {
	return u.client.FetchFirstBytes(ctx, u.url, n)
}

func (u *URL) save(body io.Reader) (string, error) {
	if err := os.MkdirAll(u.downloadDir, 0o755); err != nil {
		return "", fmt.Errorf("httpds: download dir: %w", err)
	}
	path := filepath.Join(u.downloadDir, SafeFilenameFromURL(u.url))
	tmp, err := os.CreateTemp(u.downloadDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("httpds: create temp file: %w", err)
	}
	_, err = io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("httpds: download %s: %w", u.url, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("httpds: download %s: %w", u.url, err)
	}
	return path, nil
}
