package arxiv

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	cacheEnvVar        = "PAPERCLIP_CACHE_DIR"
	cacheSubdir        = "paperclip/pdfs"
	cacheTTL           = 7 * 24 * time.Hour
	defaultHTTPTimeout = 90 * time.Second
)

// pdfCache keeps downloaded PDFs on disk. A stale entry is revalidated with
// its ETag and still served when the network is down.
type pdfCache struct {
	dir    string
	client *http.Client
	now    func() time.Time
}

type cacheEntry struct {
	URL      string    `json:"url"`
	ETag     string    `json:"etag"`
	CachedAt time.Time `json:"cachedAt"`
}

func newPDFCache(dir string, client *http.Client) (*pdfCache, error) {
	if dir == "" {
		dir = os.Getenv(cacheEnvVar)
	}
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, cacheSubdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &pdfCache{dir: dir, client: client, now: time.Now}, nil
}

// Fetch returns a local path holding the PDF at pdfURL.
func (c *pdfCache) Fetch(ctx context.Context, pdfURL string) (string, error) {
	pdfPath, metaPath := c.pathsFor(cacheKey(pdfURL))
	entry, _ := readEntry(metaPath)
	info, statErr := os.Stat(pdfPath)
	cached := statErr == nil && info.Size() > 0
	if cached && c.now().Sub(entry.CachedAt) < cacheTTL {
		return pdfPath, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", err
	}
	if cached && entry.ETag != "" {
		req.Header.Set("If-None-Match", entry.ETag)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if cached {
			return pdfPath, nil
		}
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && cached:
		entry.CachedAt = c.now().UTC()
		return pdfPath, writeEntry(metaPath, entry)
	case resp.StatusCode == http.StatusOK:
		if err := writeAtomic(pdfPath, resp.Body); err != nil {
			return "", err
		}
		entry = cacheEntry{URL: pdfURL, ETag: resp.Header.Get("Etag"), CachedAt: c.now().UTC()}
		return pdfPath, writeEntry(metaPath, entry)
	default:
		if cached {
			return pdfPath, nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pdf download failed: %s (%s)", resp.Status, string(body))
	}
}

func writeAtomic(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (c *pdfCache) pathsFor(key string) (string, string) {
	return filepath.Join(c.dir, key+".pdf"), filepath.Join(c.dir, key+".json")
}

func cacheKey(pdfURL string) string {
	if id := ExtractIdentifier(pdfURL); id != "" {
		return strings.NewReplacer("/", "-", ":", "-", "..", "-").Replace(id)
	}
	sum := sha1.Sum([]byte(pdfURL))
	return hex.EncodeToString(sum[:])
}

func readEntry(path string) (cacheEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheEntry{}, err
	}
	var entry cacheEntry
	err = json.Unmarshal(data, &entry)
	return entry, err
}

func writeEntry(path string, entry cacheEntry) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
