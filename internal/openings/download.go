package openings

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultBaseURL hosts the lichess chess-openings dataset.
const DefaultBaseURL = "https://raw.githubusercontent.com/lichess-org/chess-openings/master"

// DefaultResponseHeaderTimeout is the default timeout for receiving response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// DatasetFiles are the files making up the full dataset.
var DatasetFiles = []string{"a.tsv", "b.tsv", "c.tsv", "d.tsv", "e.tsv"}

// FetchProgress reports bytes written for one dataset file. Total is -1
// when the server sent no length.
type FetchProgress func(file string, written, total int64)

// Downloader fetches the opening dataset into a data directory.
type Downloader struct {
	client  *http.Client
	baseURL string
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.client = client
	}
}

// WithBaseURL sets the URL the dataset files are fetched from.
func WithBaseURL(url string) DownloaderOption {
	return func(d *Downloader) {
		d.baseURL = url
	}
}

// NewDownloader creates a Downloader with sensible defaults.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
			},
		},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads every dataset file into dir. Each file is written to a
// temporary name and renamed into place, so readers never observe a partial
// file.
func (d *Downloader) Fetch(ctx context.Context, dir string, progress FetchProgress) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, name := range DatasetFiles {
		if err := d.fetchFile(ctx, d.baseURL+"/"+name, filepath.Join(dir, name), progress); err != nil {
			return fmt.Errorf("fetching %s: %w", name, err)
		}
	}
	return nil
}

func (d *Downloader) fetchFile(ctx context.Context, url, dest string, progress FetchProgress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	buf := make([]byte, 32*1024)
	var written int64
	for {
		select {
		case <-ctx.Done():
			tmp.Close()
			return ctx.Err()
		default:
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				tmp.Close()
				return fmt.Errorf("writing file: %w", err)
			}
			written += int64(n)
			if progress != nil {
				progress(filepath.Base(dest), written, resp.ContentLength)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			tmp.Close()
			return fmt.Errorf("reading response: %w", rerr)
		}
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}
