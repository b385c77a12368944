// Package notion is a small client for the Notion pages API: create pages,
// list child pages, search, and append timestamped paragraphs.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/csheth/paperclip/internal/retry"
)

const (
	defaultBaseURL    = "https://api.notion.com/v1"
	defaultAPIVersion = "2022-06-28"
	defaultTimeout    = 15 * time.Second
	pageSize          = 100
	// Notion rejects rich text runs longer than this.
	maxRunRunes = 2000
	// Notion rejects paragraphs with more rich text runs than this.
	maxRunsPerBlock = 100
)

// Config describes how to reach the API.
type Config struct {
	Token      string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	Retry      retry.Policy
	HTTPClient *http.Client
}

// PageRef identifies a page returned by the API.
type PageRef struct {
	ID        string
	Title     string
	ParentID  string
	CreatedAt time.Time
}

// Client issues authenticated calls. It holds no per-call state and is safe
// for concurrent use.
type Client struct {
	baseURL string
	token   string
	version string
	timeout time.Duration
	policy  retry.Policy
	http    *http.Client
}

func New(cfg Config) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   strings.TrimSpace(cfg.Token),
		version: cfg.APIVersion,
		timeout: cfg.Timeout,
		policy:  cfg.Retry,
		http:    cfg.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.version == "" {
		c.version = defaultAPIVersion
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.policy.MaxAttempts < 1 {
		c.policy = retry.DefaultPolicy(3)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c
}

// CreatePage creates a child page titled title under parentID.
func (c *Client) CreatePage(ctx context.Context, parentID, title string) (PageRef, error) {
	if strings.TrimSpace(parentID) == "" {
		return PageRef{}, errors.New("parent page id is required")
	}
	body := map[string]any{
		"parent": map[string]string{"page_id": parentID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []richText{textRun(title, false)},
			},
		},
	}
	var page pageObject
	if err := c.doJSON(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return PageRef{}, fmt.Errorf("create page %q: %w", title, err)
	}
	ref := page.ref()
	if ref.Title == "" {
		ref.Title = title
	}
	if ref.ParentID == "" {
		ref.ParentID = parentID
	}
	return ref, nil
}

// ListChildren returns the child pages of pageID, following every cursor.
// Non-page blocks are skipped.
func (c *Client) ListChildren(ctx context.Context, pageID string) ([]PageRef, error) {
	var out []PageRef
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(pageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var resp blockList
		path := "/blocks/" + url.PathEscape(pageID) + "/children?" + q.Encode()
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, fmt.Errorf("list children of %s: %w", pageID, err)
		}
		for _, block := range resp.Results {
			if block.Type != "child_page" || block.ChildPage == nil {
				continue
			}
			out = append(out, PageRef{
				ID:        block.ID,
				Title:     block.ChildPage.Title,
				ParentID:  pageID,
				CreatedAt: block.CreatedTime,
			})
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

// Search returns the pages shared with the integration whose title matches
// query, following every cursor.
func (c *Client) Search(ctx context.Context, query string) ([]PageRef, error) {
	var out []PageRef
	cursor := ""
	for {
		body := map[string]any{
			"query":     query,
			"page_size": pageSize,
			"filter":    map[string]string{"property": "object", "value": "page"},
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		var resp pageList
		if err := c.doJSON(ctx, http.MethodPost, "/search", body, &resp); err != nil {
			return nil, fmt.Errorf("search %q: %w", query, err)
		}
		for _, page := range resp.Results {
			if page.Object != "" && page.Object != "page" {
				continue
			}
			out = append(out, page.ref())
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return out, nil
		}
		cursor = resp.NextCursor
	}
}

// AppendText adds a paragraph to pageID: the timestamp in code style followed
// by text.
func (c *Client) AppendText(ctx context.Context, pageID, text string, at time.Time) error {
	if strings.TrimSpace(pageID) == "" {
		return errors.New("page id is required")
	}
	body := map[string]any{"children": paragraphBlocks(text, at)}
	path := "/blocks/" + url.PathEscape(pageID) + "/children"
	if err := c.doJSON(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("append to %s: %w", pageID, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = buf
	}
	name := method + " " + strings.SplitN(path, "?", 2)[0]
	return retry.Do(ctx, c.policy, name, func(ctx context.Context) error {
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.Temporary() {
				return err
			}
			return retry.Permanent(err)
		}
		if retry.IsCanceled(ctx, err) {
			return retry.Permanent(err)
		}
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) {
			return retry.Permanent(err)
		}
		log.Printf("[notion] %s transport error: %v", name, err)
		return err
	})
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion API error %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsAPIError unwraps err into an *APIError, or returns nil.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
	if payload.Message == "" {
		payload.Message = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message}
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
