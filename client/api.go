package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ytblog/blog"
)

// DefaultPrefix is the route prefix the server mounts its API under.
const DefaultPrefix = "/api/youtube"

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// StoreResult is the server's answer to a submission.
type StoreResult struct {
	Message string `json:"message"`
	BlogID  int64  `json:"blog_id"`
	URL     string `json:"url"`
}

// Client talks to the blog API with a user's API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type Option func(*Client)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(c.baseURL, DefaultPrefix) + "/" + strings.Trim(prefix, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(s Settings, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(s.SiteURL, "/") + DefaultPrefix,
		apiKey:  s.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store submits a video.
func (c *Client) Store(ctx context.Context, sub blog.Submission) (*StoreResult, error) {
	var res StoreResult
	if err := c.do(ctx, http.MethodPost, "/store", sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status asks for the processing state of an article. A missing article is
// an *APIError with status 404.
func (c *Client) Status(ctx context.Context, articleID int64) (blog.Status, error) {
	var st blog.Status
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/status/%d", articleID), nil, &st)
	return st, err
}

// Categories fetches the category forest.
func (c *Client) Categories(ctx context.Context) ([]*blog.CategoryNode, error) {
	var tree []*blog.CategoryNode
	err := c.do(ctx, http.MethodGet, "/categories", nil, &tree)
	return tree, err
}

// CreateCategory adds a category under parentID, or at the top when nil.
func (c *Client) CreateCategory(ctx context.Context, title string, parentID *int64) (*blog.CategoryNode, error) {
	var res struct {
		Category blog.CategoryNode `json:"category"`
	}
	if err := c.do(ctx, http.MethodPost, "/categories", blog.NewCategory{Title: title, ParentID: parentID}, &res); err != nil {
		return nil, err
	}
	return &res.Category, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
