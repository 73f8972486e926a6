package loader

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetcher retrieves a frame asset by name.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// HTTPFetcher fetches frames from BaseURL/name.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
}

// NewHTTPFetcher uses a shared client so frame requests reuse connections.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 60 * time.Second},
		BaseURL: baseURL,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	u := strings.TrimRight(f.BaseURL, "/") + "/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return resp.Body, nil
}

// DirFetcher reads frames from a file system, usually os.DirFS(dir).
type DirFetcher struct {
	FS fs.FS
}

func (f DirFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.FS.Open(name)
}
