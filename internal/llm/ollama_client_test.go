package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/csheth/paperclip/internal/retry"
)

func newTestOllama(t *testing.T, serverURL string, client *http.Client) *ollamaClient {
	t.Helper()
	prompt, err := NewPrompt("")
	if err != nil {
		t.Fatalf("default prompt: %v", err)
	}
	return &ollamaClient{
		host:   serverURL,
		model:  "qwen3-vl:8b",
		prompt: prompt,
		policy: retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		client: client,
	}
}

func TestOllamaClientExplain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		var payload struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		if payload.Model != "qwen3-vl:8b" {
			t.Fatalf("expected model qwen3-vl:8b, got %s", payload.Model)
		}
		if !strings.Contains(payload.Prompt, `"Cool Paper"`) {
			t.Fatalf("prompt missing title: %s", payload.Prompt)
		}
		if !strings.Contains(payload.Prompt, "attention weights sum to one") {
			t.Fatalf("prompt missing passage: %s", payload.Prompt)
		}
		if !strings.Contains(payload.Prompt, "softmax normalisation") {
			t.Fatalf("prompt missing context: %s", payload.Prompt)
		}
		if payload.Stream {
			t.Fatal("expected streaming to be disabled")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"  - The weights are a distribution.\n","done":true}`))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL, server.Client())
	result, err := client.Explain(context.Background(), Request{
		Text:       "The   attention weights sum to one.",
		PaperTitle: "Cool Paper",
		Context:    "We apply softmax normalisation over keys.",
	})
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if result != "- The weights are a distribution." {
		t.Fatalf("unexpected explain result: %q", result)
	}
}

func TestOllamaClientRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"response":"ok now","done":true}`))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL, server.Client())
	result, err := client.Explain(context.Background(), Request{Text: "some passage to explain"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if result != "ok now" {
		t.Fatalf("unexpected result: %q", result)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestOllamaClientDoesNotRetryMissingModel(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL, server.Client())
	_, err := client.Explain(context.Background(), Request{Text: "some passage to explain"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single call, got %d", got)
	}
}

func TestOllamaClientRejectsEmptyPassage(t *testing.T) {
	client := newTestOllama(t, "http://127.0.0.1:1", http.DefaultClient)
	if _, err := client.Explain(context.Background(), Request{Text: "   "}); err == nil {
		t.Fatal("expected error for empty passage")
	}
}

func TestOllamaClientEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"","done":true}`))
	}))
	defer server.Close()

	client := newTestOllama(t, server.URL, server.Client())
	if _, err := client.Explain(context.Background(), Request{Text: "passage"}); err == nil {
		t.Fatal("expected error for empty response")
	}
}
