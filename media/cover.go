package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPError is returned for a non-200 response from the thumbnail host.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetching %s: bad status code %d", e.URL, e.StatusCode)
}

// CoverFetcher downloads video cover images, preferring the high resolution
// rendition and falling back to the lower one.
type CoverFetcher struct {
	client  *http.Client
	baseURL string
	maxSize int64
}

func NewCoverFetcher(baseURL string, maxSize int64, timeout time.Duration) *CoverFetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CoverFetcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: maxSize,
	}
}

// Fetch returns the cover image bytes for videoID.
func (f *CoverFetcher) Fetch(ctx context.Context, videoID string) ([]byte, error) {
	data, err := f.get(ctx, fmt.Sprintf("%s/%s/maxresdefault.jpg", f.baseURL, videoID))
	if err == nil {
		return data, nil
	}
	data, fallbackErr := f.get(ctx, fmt.Sprintf("%s/%s/hqdefault.jpg", f.baseURL, videoID))
	if fallbackErr != nil {
		return nil, fmt.Errorf("cover for %s: %w (high resolution: %v)", videoID, fallbackErr, err)
	}
	return data, nil
}

func (f *CoverFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	var body io.Reader = resp.Body
	if f.maxSize > 0 {
		body = &io.LimitedReader{R: resp.Body, N: f.maxSize + 1}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if f.maxSize > 0 && int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("cover at %s exceeds limit of %d bytes", url, f.maxSize)
	}
	return data, nil
}

// Fetcher retrieves cover image bytes for a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]byte, error)
}

// Covers fetches a cover and stores it on disk under the article's folder.
type Covers struct {
	Fetcher Fetcher
	Disk    *Disk
	Folder  string
}

// Store fetches the cover for videoID and writes it to the article's image
// folder. It returns the relative path and the image bytes.
func (c *Covers) Store(ctx context.Context, articleID int64, videoID string) (string, []byte, error) {
	data, err := c.Fetcher.Fetch(ctx, videoID)
	if err != nil {
		return "", nil, err
	}
	rel := CoverPath(c.Folder, articleID)
	if err := c.Disk.Put(rel, data); err != nil {
		return "", nil, fmt.Errorf("storing cover: %w", err)
	}
	return rel, data, nil
}
