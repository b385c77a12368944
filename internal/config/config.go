// Package config loads paperclip settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	appName   = "paperclip"
	envPrefix = "PAPERCLIP"

	DefaultNotionBaseURL    = "https://api.notion.com/v1"
	DefaultNotionAPIVersion = "2022-06-28"
	DefaultOllamaEndpoint   = "http://localhost:11434"
	DefaultOllamaModel      = "ministral-3:latest"
	DefaultAnthropicModel   = "claude-haiku-4-5-20251001"
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"

	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// DefaultPromptTemplate is rendered with the passage, paper title and context.
const DefaultPromptTemplate = `You are helping a researcher read "{{.PaperTitle}}".
Explain the highlighted passage below in plain language: what it claims, why it matters, and any term a newcomer would trip over.
Keep it under 150 words and use markdown bullets where it helps.
{{if .Context}}
Relevant excerpts from the paper:
{{.Context}}
{{end}}
Highlighted passage:
{{.Text}}`

// Settings is the resolved configuration.
type Settings struct {
	Window    WindowSettings
	Notion    NotionSettings
	LLM       LLMSettings
	Anthropic AnthropicSettings
	OpenAI    OpenAISettings
	Capture   CaptureSettings
	Journal   JournalSettings
	Debug     bool
	LogFile   string
}

type WindowSettings struct {
	Width  int
	Height int
}

type NotionSettings struct {
	Token        string
	ParentPageID string
	APIVersion   string
	BaseURL      string
	Timeout      time.Duration
	MaxAttempts  int
}

type LLMSettings struct {
	Provider       string
	Endpoint       string
	Model          string
	PromptTemplate string
	Timeout        time.Duration
	MaxAttempts    int
}

type AnthropicSettings struct {
	APIKey string
}

type OpenAISettings struct {
	APIKey  string
	BaseURL string
}

type CaptureSettings struct {
	Interval   time.Duration
	MinLength  int
	QueueDepth int
}

type JournalSettings struct {
	Enabled bool
	Path    string
}

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// Dir returns the directory holding config.yaml and the journal.
func Dir() (string, error) {
	return configDirFunc()
}

// FilePath returns the default config file location.
func FilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Init prepares v: config file lookup, env binding and defaults. A missing
// config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key := range envAliases {
		if err := v.BindEnv(append([]string{key}, EnvVars(key)...)...); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	dir, _ := configDirFunc()

	v.SetDefault("window.width", 64)
	v.SetDefault("window.height", 20)
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.parent_page_id", "")
	v.SetDefault("notion.api_version", DefaultNotionAPIVersion)
	v.SetDefault("notion.base_url", DefaultNotionBaseURL)
	v.SetDefault("notion.timeout", 15*time.Second)
	v.SetDefault("notion.max_attempts", 3)
	v.SetDefault("llm.provider", ProviderOllama)
	v.SetDefault("llm.endpoint", DefaultOllamaEndpoint)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.prompt_template", DefaultPromptTemplate)
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", DefaultOpenAIBaseURL)
	v.SetDefault("capture.interval", 500*time.Millisecond)
	v.SetDefault("capture.min_length", 10)
	v.SetDefault("capture.queue_depth", 16)
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(dir, "journal.db"))
	v.SetDefault("debug", false)
	v.SetDefault("log.file", "paperclip-debug.log")
}

var envAliases = map[string][]string{
	"notion.token":          {"NOTION_TOKEN", "NOTION_API_KEY"},
	"notion.parent_page_id": {"NOTION_PARENT_PAGE_ID"},
	"llm.endpoint":          {"OLLAMA_HOST"},
	"llm.model":             {"OLLAMA_MODEL"},
	"anthropic.api_key":     {"ANTHROPIC_API_KEY"},
	"openai.api_key":        {"OPENAI_API_KEY"},
	"openai.base_url":       {"OPENAI_BASE_URL"},
}

// EnvVars lists the environment variables read for key, highest priority
// first.
func EnvVars(key string) []string {
	return append([]string{envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, envAliases[key]...)
}

// Secret reports whether the value of key should be masked when shown.
func Secret(key string) bool {
	switch key {
	case "notion.token", "anthropic.api_key", "openai.api_key":
		return true
	}
	return false
}

// Keys lists every setting in display order.
func Keys() []string {
	return []string{
		"window.width", "window.height",
		"notion.token", "notion.parent_page_id", "notion.api_version", "notion.base_url",
		"notion.timeout", "notion.max_attempts",
		"llm.provider", "llm.endpoint", "llm.model", "llm.prompt_template", "llm.timeout",
		"llm.max_attempts",
		"anthropic.api_key",
		"openai.api_key", "openai.base_url",
		"capture.interval", "capture.min_length", "capture.queue_depth",
		"journal.enabled", "journal.path",
		"debug", "log.file",
	}
}

// FromViper resolves Settings from an initialized viper instance.
func FromViper(v *viper.Viper) Settings {
	s := Settings{
		Window: WindowSettings{
			Width:  v.GetInt("window.width"),
			Height: v.GetInt("window.height"),
		},
		Notion: NotionSettings{
			Token:        strings.TrimSpace(v.GetString("notion.token")),
			ParentPageID: normalizePageID(v.GetString("notion.parent_page_id")),
			APIVersion:   strings.TrimSpace(v.GetString("notion.api_version")),
			BaseURL:      strings.TrimRight(strings.TrimSpace(v.GetString("notion.base_url")), "/"),
			Timeout:      v.GetDuration("notion.timeout"),
			MaxAttempts:  v.GetInt("notion.max_attempts"),
		},
		LLM: LLMSettings{
			Provider:       strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
			Endpoint:       strings.TrimRight(strings.TrimSpace(v.GetString("llm.endpoint")), "/"),
			Model:          strings.TrimSpace(v.GetString("llm.model")),
			PromptTemplate: v.GetString("llm.prompt_template"),
			Timeout:        v.GetDuration("llm.timeout"),
			MaxAttempts:    v.GetInt("llm.max_attempts"),
		},
		Anthropic: AnthropicSettings{
			APIKey: strings.TrimSpace(v.GetString("anthropic.api_key")),
		},
		OpenAI: OpenAISettings{
			APIKey:  strings.TrimSpace(v.GetString("openai.api_key")),
			BaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("openai.base_url")), "/"),
		},
		Capture: CaptureSettings{
			Interval:   v.GetDuration("capture.interval"),
			MinLength:  v.GetInt("capture.min_length"),
			QueueDepth: v.GetInt("capture.queue_depth"),
		},
		Journal: JournalSettings{
			Enabled: v.GetBool("journal.enabled"),
			Path:    v.GetString("journal.path"),
		},
		Debug:   v.GetBool("debug"),
		LogFile: v.GetString("log.file"),
	}
	if s.LLM.Model == "" {
		switch s.LLM.Provider {
		case ProviderAnthropic:
			s.LLM.Model = DefaultAnthropicModel
		case ProviderOpenAI:
			s.LLM.Model = DefaultOpenAIModel
		default:
			s.LLM.Model = DefaultOllamaModel
		}
	}
	return s
}

// Load is the one-call path used by the CLI.
func Load(cfgFile string) (Settings, *viper.Viper, error) {
	v := viper.New()
	if err := Init(v, cfgFile); err != nil {
		return Settings{}, nil, err
	}
	return FromViper(v), v, nil
}

// normalizePageID accepts a bare id or a notion.so URL ending in the id.
func normalizePageID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if idx := strings.IndexAny(raw, "?#"); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimRight(raw, "/")
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		raw = raw[idx+1:]
	}
	if idx := strings.LastIndex(raw, "-"); idx >= 0 && len(raw)-idx-1 == 32 {
		raw = raw[idx+1:]
	}
	return raw
}
