package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/csheth/paperclip/internal/config"
	"github.com/csheth/paperclip/internal/retry"
)

const (
	defaultOllamaModel = config.DefaultOllamaModel
	// Local models get slow past a few thousand tokens; keep the excerpt short.
	maxContextChars = 12_000
	maxPassageChars = 8_000
)

const defaultLLMHTTPTimeout = 2 * time.Minute

// Config describes how to build an LLM client.
type Config struct {
	Provider string
	Model    string
	Endpoint string
	APIKey   string
	// BaseURL is the chat completions root for the openai provider.
	BaseURL        string
	PromptTemplate string
	Retry          retry.Policy
	HTTPClient     *http.Client
}

// Request is one passage to explain.
type Request struct {
	Text       string
	PaperTitle string
	// Context holds excerpts of the paper near the passage, if known.
	Context string
}

// Client turns a highlighted passage into an explanation.
type Client interface {
	Explain(ctx context.Context, req Request) (string, error)
	Name() string
}

// ConfigFromSettings maps loaded settings onto a client Config.
func ConfigFromSettings(s config.Settings) Config {
	cfg := Config{
		Provider:       s.LLM.Provider,
		Model:          s.LLM.Model,
		Endpoint:       s.LLM.Endpoint,
		APIKey:         s.Anthropic.APIKey,
		PromptTemplate: s.LLM.PromptTemplate,
		Retry:          retry.DefaultPolicy(s.LLM.MaxAttempts),
	}
	if s.LLM.Provider == config.ProviderOpenAI {
		cfg.APIKey = s.OpenAI.APIKey
		cfg.BaseURL = s.OpenAI.BaseURL
	}
	if s.LLM.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: s.LLM.Timeout}
	}
	return cfg
}

// New builds the client for cfg.Provider, filling blanks from OLLAMA_HOST and
// OLLAMA_MODEL the same way the Ollama CLI does.
func New(cfg Config) (Client, error) {
	prompt, err := NewPrompt(cfg.PromptTemplate)
	if err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = retry.DefaultPolicy(3)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", config.ProviderOllama:
		host := cfg.Endpoint
		if host == "" {
			if env := os.Getenv("OLLAMA_HOST"); env != "" {
				host = env
			} else {
				host = config.DefaultOllamaEndpoint
			}
		}
		model := cfg.Model
		if model == "" {
			if env := os.Getenv("OLLAMA_MODEL"); env != "" {
				model = env
			} else {
				model = defaultOllamaModel
			}
		}
		return &ollamaClient{
			host:   strings.TrimRight(host, "/"),
			model:  model,
			prompt: prompt,
			policy: cfg.Retry,
			client: pickHTTPClient(cfg.HTTPClient),
		}, nil
	case config.ProviderAnthropic:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("anthropic provider needs an API key")
		}
		model := cfg.Model
		if model == "" {
			model = config.DefaultAnthropicModel
		}
		return newAnthropicClient(cfg.APIKey, model, "", prompt, cfg.Retry, pickHTTPClient(cfg.HTTPClient)), nil
	case config.ProviderOpenAI:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("openai provider needs an API key")
		}
		model := cfg.Model
		if model == "" {
			model = config.DefaultOpenAIModel
		}
		base := cfg.BaseURL
		if base == "" {
			base = config.DefaultOpenAIBaseURL
		}
		return &openAIClient{
			apiKey: cfg.APIKey,
			model:  model,
			base:   strings.TrimRight(base, "/"),
			prompt: prompt,
			policy: cfg.Retry,
			client: pickHTTPClient(cfg.HTTPClient),
		}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Ollama often needs more than a minute on a cold model.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}
