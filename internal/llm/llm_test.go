package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/csheth/paperclip/internal/config"
	"github.com/csheth/paperclip/internal/retry"
)

func TestPickHTTPClientHonorsCustomClient(t *testing.T) {
	custom := &http.Client{Timeout: 42 * time.Second}
	if got := pickHTTPClient(custom); got != custom {
		t.Fatalf("expected custom client to be returned")
	}
}

func TestPickHTTPClientUsesLongerTimeout(t *testing.T) {
	client := pickHTTPClient(nil)
	if client.Timeout != defaultLLMHTTPTimeout {
		t.Fatalf("expected default timeout %s, got %s", defaultLLMHTTPTimeout, client.Timeout)
	}
}

func TestNewDefaultsToOllamaFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://gpu-box:11434/")
	t.Setenv("OLLAMA_MODEL", "llama3")

	client, err := New(Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ollama, ok := client.(*ollamaClient)
	if !ok {
		t.Fatalf("expected ollama client, got %T", client)
	}
	if ollama.host != "http://gpu-box:11434" || ollama.model != "llama3" {
		t.Fatalf("unexpected client: host=%s model=%s", ollama.host, ollama.model)
	}
	if client.Name() != "Ollama (llama3)" {
		t.Fatalf("unexpected name: %s", client.Name())
	}
}

func TestNewRejectsUnknownProviderAndMissingKey(t *testing.T) {
	if _, err := New(Config{Provider: "mystery"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if _, err := New(Config{Provider: config.ProviderAnthropic}); err == nil {
		t.Fatal("expected error without API key")
	}
	if _, err := New(Config{PromptTemplate: "{{.Text"}); err == nil {
		t.Fatal("expected error for broken template")
	}
}

func TestConfigFromSettings(t *testing.T) {
	var s config.Settings
	s.LLM.Provider = config.ProviderAnthropic
	s.LLM.Model = "claude-test"
	s.LLM.Timeout = 5 * time.Second
	s.Anthropic.APIKey = "sk-test"
	s.LLM.MaxAttempts = 4
	s.Notion.MaxAttempts = 9

	cfg := ConfigFromSettings(s)
	if cfg.APIKey != "sk-test" || cfg.Model != "claude-test" || cfg.Retry.MaxAttempts != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HTTPClient == nil || cfg.HTTPClient.Timeout != 5*time.Second {
		t.Fatalf("expected http client with timeout, got %+v", cfg.HTTPClient)
	}
}

func TestConfigFromSettingsOpenAI(t *testing.T) {
	var s config.Settings
	s.LLM.Provider = config.ProviderOpenAI
	s.LLM.MaxAttempts = 2
	s.Anthropic.APIKey = "anthropic-key"
	s.OpenAI.APIKey = "sk-openai"
	s.OpenAI.BaseURL = "http://localhost:8080/v1"

	cfg := ConfigFromSettings(s)
	if cfg.APIKey != "sk-openai" || cfg.BaseURL != "http://localhost:8080/v1" || cfg.Retry.MaxAttempts != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	openai, ok := client.(*openAIClient)
	if !ok {
		t.Fatalf("expected openai client, got %T", client)
	}
	if openai.model != config.DefaultOpenAIModel || openai.base != "http://localhost:8080/v1" {
		t.Fatalf("unexpected client: model=%s base=%s", openai.model, openai.base)
	}
	if _, err := New(Config{Provider: config.ProviderOpenAI}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestPromptRender(t *testing.T) {
	prompt, err := NewPrompt("Title={{.PaperTitle}}|Text={{.Text}}|Ctx={{.Context}}")
	if err != nil {
		t.Fatalf("new prompt: %v", err)
	}
	got, err := prompt.Render(Request{Text: "a   b\n c  ", Context: " ctx "})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Title=the paper|Text=a b\nc|Ctx=ctx" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestPromptClipsLongPassage(t *testing.T) {
	prompt, _ := NewPrompt("{{.Text}}")
	got, err := prompt.Render(Request{Text: strings.Repeat("x", maxPassageChars+50)})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(got) != maxPassageChars {
		t.Fatalf("expected clipped passage of %d, got %d", maxPassageChars, len(got))
	}
}

func TestAnthropicClientExplain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-test" {
			t.Fatalf("unexpected api key header: %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content []struct {
					Text string `json:"text"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Model != "claude-test" {
			t.Fatalf("unexpected model: %s", payload.Model)
		}
		if len(payload.Messages) != 1 || !strings.Contains(payload.Messages[0].Content[0].Text, "residual stream") {
			t.Fatalf("unexpected messages: %+v", payload.Messages)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"It is the running sum of layer outputs."}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":9}}`))
	}))
	defer server.Close()

	prompt, _ := NewPrompt("")
	policy := retry.Policy{MaxAttempts: 1}
	client := newAnthropicClient("sk-test", "claude-test", server.URL+"/", prompt, policy, server.Client())

	got, err := client.Explain(context.Background(), Request{Text: "the residual stream carries features"})
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if got != "It is the running sum of layer outputs." {
		t.Fatalf("unexpected explanation: %q", got)
	}
	if client.Name() != "Anthropic (claude-test)" {
		t.Fatalf("unexpected name: %s", client.Name())
	}
}
