package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/csheth/paperclip/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{
		Token:      "secret_test",
		BaseURL:    server.URL,
		APIVersion: "2022-06-28",
		Timeout:    2 * time.Second,
		Retry:      retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		HTTPClient: server.Client(),
	})
}

func TestCreatePageSendsHeadersAndTitle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pages" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret_test" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Fatalf("unexpected version header: %q", got)
		}
		var payload struct {
			Parent     map[string]string `json:"parent"`
			Properties map[string]struct {
				Title []struct {
					Text struct {
						Content string `json:"content"`
					} `json:"text"`
				} `json:"title"`
			} `json:"properties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Parent["page_id"] != "root" {
			t.Fatalf("unexpected parent: %v", payload.Parent)
		}
		if got := payload.Properties["title"].Title[0].Text.Content; got != "Highlights" {
			t.Fatalf("unexpected title: %q", got)
		}
		io.WriteString(w, `{"object":"page","id":"page-1","created_time":"2024-03-01T10:00:00.000Z",
			"properties":{"title":{"type":"title","title":[{"plain_text":"Highlights"}]}}}`)
	})

	ref, err := client.CreatePage(context.Background(), "root", "Highlights")
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if ref.ID != "page-1" || ref.Title != "Highlights" || ref.ParentID != "root" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
	if ref.CreatedAt.IsZero() {
		t.Fatal("expected created time to be parsed")
	}
}

func TestListChildrenDrainsPagination(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/blocks/root/children" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page_size") != "100" {
			t.Fatalf("expected page_size=100, got %q", r.URL.RawQuery)
		}
		switch n {
		case 1:
			if r.URL.Query().Get("start_cursor") != "" {
				t.Fatal("first page should not carry a cursor")
			}
			io.WriteString(w, `{"results":[
				{"object":"block","id":"a","type":"child_page","child_page":{"title":"Paper A"}},
				{"object":"block","id":"p","type":"paragraph","paragraph":{}}
			],"has_more":true,"next_cursor":"cur-2"}`)
		case 2:
			if got := r.URL.Query().Get("start_cursor"); got != "cur-2" {
				t.Fatalf("expected cursor cur-2, got %q", got)
			}
			io.WriteString(w, `{"results":[
				{"object":"block","id":"b","type":"child_page","child_page":{"title":"Paper B"}}
			],"has_more":false,"next_cursor":null}`)
		default:
			t.Fatalf("unexpected extra call %d", n)
		}
	})

	pages, err := client.ListChildren(context.Background(), "root")
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(pages) != 2 || pages[0].Title != "Paper A" || pages[1].ID != "b" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
	if pages[0].ParentID != "root" {
		t.Fatalf("expected parent id to be filled, got %+v", pages[0])
	}
}

func TestAppendTextRetriesTransientFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"object":"error","status":503,"code":"service_unavailable","message":"try later"}`)
			return
		}
		io.WriteString(w, `{"object":"list","results":[]}`)
	})

	err := client.AppendText(context.Background(), "hl", "a passage worth keeping", time.Now())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestAppendTextRetriesRateLimitThenGivesUp(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"code":"rate_limited","message":"slow down"}`)
	})

	err := client.AppendText(context.Background(), "hl", "text", time.Now())
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.Code != "rate_limited" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"code":"object_not_found","message":"Could not find block"}`)
	})

	_, err := client.ListChildren(context.Background(), "missing")
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	if apiErr.Temporary() {
		t.Fatal("404 should not be temporary")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestAppendTextPayload(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	long := strings.Repeat("é", 2500)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/blocks/hl/children" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var payload struct {
			Children []struct {
				Type      string `json:"type"`
				Paragraph struct {
					RichText []struct {
						Text struct {
							Content string `json:"content"`
						} `json:"text"`
						Annotations *struct {
							Code bool `json:"code"`
						} `json:"annotations"`
					} `json:"rich_text"`
				} `json:"paragraph"`
			} `json:"children"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if len(payload.Children) != 1 || payload.Children[0].Type != "paragraph" {
			t.Fatalf("expected one paragraph, got %+v", payload.Children)
		}
		runs := payload.Children[0].Paragraph.RichText
		if len(runs) != 3 {
			t.Fatalf("expected timestamp plus two text runs, got %d", len(runs))
		}
		if runs[0].Text.Content != "2024-03-01 09:30:00" || runs[0].Annotations == nil || !runs[0].Annotations.Code {
			t.Fatalf("unexpected timestamp run: %+v", runs[0])
		}
		total := 0
		for _, run := range runs[1:] {
			n := len([]rune(run.Text.Content))
			if n > 2000 {
				t.Fatalf("run too long: %d runes", n)
			}
			total += n
		}
		if total != 2501 {
			t.Fatalf("expected text plus leading space, got %d runes", total)
		}
		io.WriteString(w, `{}`)
	})

	if err := client.AppendText(context.Background(), "hl", long, at); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestSearchFiltersPagesAndDrains(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		filter, _ := payload["filter"].(map[string]any)
		if filter["value"] != "page" {
			t.Fatalf("expected page filter, got %v", payload["filter"])
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			io.WriteString(w, `{"results":[{"object":"page","id":"x","parent":{"type":"page_id","page_id":"root"},
				"properties":{"Name":{"type":"title","title":[{"plain_text":"Transformers"}]}}}],
				"has_more":true,"next_cursor":"next"}`)
			return
		}
		if payload["start_cursor"] != "next" {
			t.Fatalf("expected start_cursor next, got %v", payload["start_cursor"])
		}
		io.WriteString(w, `{"results":[{"object":"database","id":"db"}],"has_more":false}`)
	})

	pages, err := client.Search(context.Background(), "Trans")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(pages) != 1 || pages[0].Title != "Transformers" || pages[0].ParentID != "root" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestSplitRunesRespectsLimit(t *testing.T) {
	if got := splitRunes("", 10); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
	parts := splitRunes("abcdefghij", 4)
	want := []string{"abc", "defg", "hij"}
	if strings.Join(parts, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected split: %v", parts)
	}
}

func TestParagraphBlocksSpillOverRunLimit(t *testing.T) {
	text := strings.Repeat("x", maxRunRunes*maxRunsPerBlock)
	blocks := paragraphBlocks(text, time.Now())
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if len(blocks[0].Paragraph.RichText) != maxRunsPerBlock {
		t.Fatalf("first block should be full, got %d runs", len(blocks[0].Paragraph.RichText))
	}
}
