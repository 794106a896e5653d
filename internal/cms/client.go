// Package cms talks to the WordPress REST API that hosts published articles.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client is the subset of the CMS the pipeline needs.
type Client interface {
	// ListPosts returns the most recent posts with the given status.
	ListPosts(ctx context.Context, limit int, status string) ([]Post, error)
	// PopularPosts returns the most viewed posts of the last days.
	PopularPosts(ctx context.Context, days, limit int) ([]Post, error)
	// CreatePost creates a post and returns it as stored.
	CreatePost(ctx context.Context, post NewPost) (*Post, error)
	// ResolveTerms maps term slugs of a taxonomy ("categories" or "tags") to ids.
	ResolveTerms(ctx context.Context, taxonomy string, slugs []string) ([]int, error)
}

// Error represents a failed CMS request
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cms %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WordPressClient implements Client against the WordPress REST API using
// application-password basic auth.
type WordPressClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// NewWordPressClient creates a client for the site at baseURL.
func NewWordPressClient(baseURL, username, appPassword string) *WordPressClient {
	return &WordPressClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		username:   username,
		password:   appPassword,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *WordPressClient) WithHTTPClient(hc *http.Client) *WordPressClient {
	c.httpClient = hc
	return c
}

// ListPosts returns up to limit posts, newest first. WordPress caps a page at 100.
func (c *WordPressClient) ListPosts(ctx context.Context, limit int, status string) ([]Post, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(clamp(limit, 1, 100)))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	if status != "" {
		q.Set("status", status)
	}

	var posts []Post
	if err := c.do(ctx, "list posts", http.MethodGet, "/wp-json/wp/v2/posts", q, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// PopularPosts calls the site's popular-posts endpoint.
func (c *WordPressClient) PopularPosts(ctx context.Context, days, limit int) ([]Post, error) {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	q.Set("limit", strconv.Itoa(limit))

	var posts []Post
	if err := c.do(ctx, "popular posts", http.MethodGet, "/wp-json/logishift/v1/popular-posts", q, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost creates a new post.
func (c *WordPressClient) CreatePost(ctx context.Context, post NewPost) (*Post, error) {
	if err := post.Validate(); err != nil {
		return nil, &Error{Op: "create post", Message: "invalid post", Cause: err}
	}

	body, err := json.Marshal(post)
	if err != nil {
		return nil, &Error{Op: "create post", Message: "failed to encode post", Cause: err}
	}

	var created Post
	if err := c.do(ctx, "create post", http.MethodPost, "/wp-json/wp/v2/posts", nil, body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ResolveTerms looks up term ids by slug. Unknown slugs are skipped.
func (c *WordPressClient) ResolveTerms(ctx context.Context, taxonomy string, slugs []string) ([]int, error) {
	if len(slugs) == 0 {
		return []int{}, nil
	}

	q := url.Values{}
	q.Set("slug", strings.Join(slugs, ","))
	q.Set("per_page", "100")

	var terms []struct {
		ID   int    `json:"id"`
		Slug string `json:"slug"`
	}
	if err := c.do(ctx, "resolve "+taxonomy, http.MethodGet, "/wp-json/wp/v2/"+taxonomy, q, nil, &terms); err != nil {
		return nil, err
	}

	bySlug := make(map[string]int, len(terms))
	for _, t := range terms {
		bySlug[t.Slug] = t.ID
	}
	ids := make([]int, 0, len(slugs))
	for _, s := range slugs {
		if id, ok := bySlug[s]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *WordPressClient) do(ctx context.Context, op, method, path string, query url.Values, body []byte, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: apiMessage(data)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// apiMessage pulls the message out of a WordPress error body.
func apiMessage(data []byte) string {
	var wpErr struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &wpErr); err == nil && wpErr.Message != "" {
		return fmt.Sprintf("%s: %s", wpErr.Code, wpErr.Message)
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
