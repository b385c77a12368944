// Package arxiv resolves arXiv links typed as paper names into titles and,
// on demand, the paper's plain text.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	defaultAPIBase = "https://export.arxiv.org/api/query"
	defaultPDFBase = "https://arxiv.org/pdf"
)

// Paper is the metadata used to name a paper and seed explanations.
type Paper struct {
	ID       string
	Title    string
	Authors  []string
	Abstract string
	PDFURL   string
}

// Client talks to the arXiv export API and downloads PDFs through a cache.
type Client struct {
	apiBase string
	pdfBase string
	http    *http.Client
	cache   *pdfCache
}

// Options overrides endpoints and storage, mainly for tests.
type Options struct {
	APIBase    string
	PDFBase    string
	CacheDir   string
	HTTPClient *http.Client
}

func New(opts Options) (*Client, error) {
	c := &Client{
		apiBase: opts.APIBase,
		pdfBase: strings.TrimRight(opts.PDFBase, "/"),
		http:    opts.HTTPClient,
	}
	if c.apiBase == "" {
		c.apiBase = defaultAPIBase
	}
	if c.pdfBase == "" {
		c.pdfBase = defaultPDFBase
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	cache, err := newPDFCache(opts.CacheDir, nil)
	if err != nil {
		return nil, err
	}
	c.cache = cache
	if opts.HTTPClient != nil {
		c.cache.client = opts.HTTPClient
	}
	return c, nil
}

var (
	idRegexp             = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([0-9a-z.\-]+?)(?:\.pdf)?/?$`)
	bareIDRegexp         = regexp.MustCompile(`(?i)^(?:\d{4}\.\d{4,5}|[a-z\-]+(?:\.[a-z]{2})?/\d{7})(?:v\d+)?$`)
	extraneousWhitespace = regexp.MustCompile(`\s+`)
)

// ExtractIdentifier returns the arXiv id in input, or "" when input is not an
// arXiv URL or identifier. Plain paper titles never match.
func ExtractIdentifier(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if matches := idRegexp.FindStringSubmatch(input); len(matches) > 1 {
		return matches[1]
	}
	if len(input) > len("arxiv:") && strings.EqualFold(input[:len("arxiv:")], "arxiv:") {
		input = strings.TrimSpace(input[len("arxiv:"):])
	}
	if len(input) > 4 && strings.EqualFold(input[len(input)-4:], ".pdf") {
		input = input[:len(input)-4]
	}
	if bareIDRegexp.MatchString(input) {
		return input
	}
	return ""
}

// Lookup fetches metadata for an arXiv URL or identifier.
func (c *Client) Lookup(ctx context.Context, input string) (*Paper, error) {
	id := ExtractIdentifier(input)
	if id == "" {
		return nil, fmt.Errorf("unable to extract arXiv identifier from %q", input)
	}

	q := url.Values{}
	q.Set("id_list", id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("arxiv API error: %s (%s)", resp.Status, string(body))
	}

	entry, err := decodeEntry(resp.Body)
	if err != nil {
		return nil, err
	}
	if entry == nil || normalizeWhitespace(entry.Title) == "" {
		return nil, errors.New("paper not found")
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		authors = append(authors, strings.TrimSpace(a.Name))
	}
	log.Printf("[arxiv] resolved %s", id)
	return &Paper{
		ID:       id,
		Title:    normalizeWhitespace(entry.Title),
		Authors:  authors,
		Abstract: normalizeWhitespace(entry.Summary),
		PDFURL:   fmt.Sprintf("%s/%s.pdf", c.pdfBase, id),
	}, nil
}

// FullText downloads the paper's PDF (cached on disk) and extracts its text.
func (c *Client) FullText(ctx context.Context, p *Paper) (string, error) {
	if p == nil || p.PDFURL == "" {
		return "", errors.New("paper has no PDF url")
	}
	path, err := c.cache.Fetch(ctx, p.PDFURL)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", p.ID, err)
	}
	return pdfText(path)
}

type apiFeed struct {
	Entries []apiEntry `xml:"entry"`
}

type apiEntry struct {
	ID      string      `xml:"id"`
	Title   string      `xml:"title"`
	Summary string      `xml:"summary"`
	Authors []apiAuthor `xml:"author"`
}

type apiAuthor struct {
	Name string `xml:"name"`
}

func decodeEntry(reader io.Reader) (*apiEntry, error) {
	var feed apiFeed
	if err := xml.NewDecoder(reader).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode arxiv response: %w", err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}
	return &feed.Entries[0], nil
}

func normalizeWhitespace(s string) string {
	return extraneousWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// pdfText keeps paragraph breaks so the excerpt builder can split on them.
func pdfText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	content, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var builder strings.Builder
	if _, err := io.Copy(&builder, content); err != nil {
		return "", err
	}
	return strings.TrimSpace(builder.String()), nil
}
