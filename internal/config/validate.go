package config

import (
	"fmt"
	"net/url"
	"strings"
	"text/template"
)

// Phase groups settings by the feature they unlock. Earlier phases work
// without the settings of later ones.
type Phase int

const (
	PhaseCapture Phase = iota + 1
	PhaseNotion
	PhaseExplain
)

func (p Phase) String() string {
	switch p {
	case PhaseCapture:
		return "capture"
	case PhaseNotion:
		return "notion"
	case PhaseExplain:
		return "explain"
	default:
		return "unknown"
	}
}

// Issue is one validation problem.
type Issue struct {
	Phase   Phase
	Key     string
	Message string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s (%s)", i.Key, i.Message, i.Phase)
}

// Phases reports which features can run with the current settings.
type Phases struct {
	Capture bool
	Notion  bool
	Explain bool
}

// Validate returns every problem found instead of stopping at the first.
func (s Settings) Validate() []Issue {
	var issues []Issue
	add := func(phase Phase, key, format string, args ...any) {
		issues = append(issues, Issue{Phase: phase, Key: key, Message: fmt.Sprintf(format, args...)})
	}

	if s.Capture.Interval <= 0 {
		add(PhaseCapture, "capture.interval", "must be positive, got %s", s.Capture.Interval)
	}
	if s.Capture.MinLength < 0 {
		add(PhaseCapture, "capture.min_length", "must not be negative, got %d", s.Capture.MinLength)
	}
	if s.Capture.QueueDepth < 1 {
		add(PhaseCapture, "capture.queue_depth", "must be at least 1, got %d", s.Capture.QueueDepth)
	}

	if s.Notion.Token == "" {
		add(PhaseNotion, "notion.token", "missing Notion integration token (set NOTION_TOKEN)")
	}
	if s.Notion.ParentPageID == "" {
		add(PhaseNotion, "notion.parent_page_id", "missing parent page id (set NOTION_PARENT_PAGE_ID)")
	}
	if _, err := url.ParseRequestURI(s.Notion.BaseURL); err != nil {
		add(PhaseNotion, "notion.base_url", "invalid url %q", s.Notion.BaseURL)
	}
	if s.Notion.MaxAttempts < 1 {
		add(PhaseNotion, "notion.max_attempts", "must be at least 1, got %d", s.Notion.MaxAttempts)
	}

	switch s.LLM.Provider {
	case ProviderOllama:
		if _, err := url.ParseRequestURI(s.LLM.Endpoint); err != nil || s.LLM.Endpoint == "" {
			add(PhaseExplain, "llm.endpoint", "invalid inference endpoint %q", s.LLM.Endpoint)
		}
	case ProviderAnthropic:
		if s.Anthropic.APIKey == "" {
			add(PhaseExplain, "anthropic.api_key", "missing API key (set ANTHROPIC_API_KEY)")
		}
	case ProviderOpenAI:
		if s.OpenAI.APIKey == "" {
			add(PhaseExplain, "openai.api_key", "missing API key (set OPENAI_API_KEY)")
		}
		if _, err := url.ParseRequestURI(s.OpenAI.BaseURL); err != nil {
			add(PhaseExplain, "openai.base_url", "invalid url %q", s.OpenAI.BaseURL)
		}
	default:
		add(PhaseExplain, "llm.provider", "unknown provider %q (want %s, %s or %s)",
			s.LLM.Provider, ProviderOllama, ProviderAnthropic, ProviderOpenAI)
	}
	if s.LLM.MaxAttempts < 1 {
		add(PhaseExplain, "llm.max_attempts", "must be at least 1, got %d", s.LLM.MaxAttempts)
	}
	if strings.TrimSpace(s.LLM.PromptTemplate) == "" {
		add(PhaseExplain, "llm.prompt_template", "must not be empty")
	} else if _, err := template.New("prompt").Parse(s.LLM.PromptTemplate); err != nil {
		add(PhaseExplain, "llm.prompt_template", "does not parse: %v", err)
	}
	return issues
}

// Phases derives the enabled features from Validate. Nothing runs without a
// usable capture section.
func (s Settings) Phases() Phases {
	blocked := map[Phase]bool{}
	for _, issue := range s.Validate() {
		blocked[issue.Phase] = true
	}
	p := Phases{Capture: !blocked[PhaseCapture]}
	p.Notion = p.Capture && !blocked[PhaseNotion]
	p.Explain = p.Capture && !blocked[PhaseExplain]
	return p
}

// IssuesFor filters issues down to a phase.
func IssuesFor(issues []Issue, phase Phase) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Phase == phase {
			out = append(out, issue)
		}
	}
	return out
}
