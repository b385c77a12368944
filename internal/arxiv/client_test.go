package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"abs url", "https://arxiv.org/abs/2101.00001", "2101.00001"},
		{"pdf url", "https://arxiv.org/pdf/2205.12345.pdf", "2205.12345"},
		{"versioned url", "https://arxiv.org/abs/1706.03762v7", "1706.03762v7"},
		{"prefixed", "arXiv:2101.00001", "2101.00001"},
		{"bare", "2308.01234v2", "2308.01234v2"},
		{"bare pdf suffix", "2308.01234v2.pdf", "2308.01234v2"},
		{"old style", "hep-th/9901001", "hep-th/9901001"},
		{"title", "Attention Is All You Need", ""},
		{"single word", "transformers", ""},
		{"invalid", "https://example.com/foo", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractIdentifier(tt.in); got != tt.want {
				t.Fatalf("ExtractIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on
      recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name> Noam Shazeer </name></author>
  </entry>
</feed>`

func TestLookupParsesFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id_list"); got != "1706.03762" {
			t.Fatalf("unexpected id_list: %q", got)
		}
		w.Write([]byte(sampleFeed))
	}))
	defer server.Close()

	client, err := New(Options{APIBase: server.URL, PDFBase: "https://pdfs.example", CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	paper, err := client.Lookup(context.Background(), "https://arxiv.org/abs/1706.03762")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if paper.Title != "Attention Is All You Need" {
		t.Fatalf("unexpected title: %q", paper.Title)
	}
	if paper.Abstract != "The dominant sequence transduction models are based on recurrent networks." {
		t.Fatalf("unexpected abstract: %q", paper.Abstract)
	}
	if len(paper.Authors) != 2 || paper.Authors[1] != "Noam Shazeer" {
		t.Fatalf("unexpected authors: %#v", paper.Authors)
	}
	if paper.PDFURL != "https://pdfs.example/1706.03762.pdf" {
		t.Fatalf("unexpected pdf url: %s", paper.PDFURL)
	}
}

func TestLookupRejectsTitlesAndEmptyFeeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	}))
	defer server.Close()

	client, err := New(Options{APIBase: server.URL, CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Lookup(context.Background(), "Plain Title"); err == nil {
		t.Fatal("expected error for non-arXiv input")
	}
	if _, err := client.Lookup(context.Background(), "2101.00001"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestLookupSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := New(Options{APIBase: server.URL, CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Lookup(context.Background(), "2101.00001"); err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

func TestFullTextRejectsNonPDF(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a pdf"))
	}))
	defer server.Close()

	client, err := New(Options{CacheDir: t.TempDir(), HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.FullText(context.Background(), &Paper{ID: "x", PDFURL: server.URL + "/x.pdf"}); err == nil {
		t.Fatal("expected error for a non-PDF body")
	}
	if _, err := client.FullText(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil paper")
	}
}
