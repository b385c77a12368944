// Package guide turns config validation into the setup checklist shown on
// the main menu.
package guide

import (
	"fmt"
	"strings"

	"github.com/csheth/paperclip/internal/config"
)

// Step represents one phase of setup and whether it is done.
type Step struct {
	Phase       config.Phase
	Title       string
	Description string
	Ready       bool
}

var phaseTitles = map[config.Phase]string{
	config.PhaseCapture: "Clipboard capture",
	config.PhaseNotion:  "Save to Notion",
	config.PhaseExplain: "AI explanations",
}

var hints = map[string]string{
	"notion.token":          "Create an internal integration at notion.so/my-integrations and export NOTION_TOKEN.",
	"notion.parent_page_id": "Share a page with the integration and export NOTION_PARENT_PAGE_ID (the page URL works too).",
	"llm.endpoint":          "Start Ollama (ollama serve) or point OLLAMA_HOST at a running server.",
	"anthropic.api_key":     "Export ANTHROPIC_API_KEY or switch llm.provider back to ollama.",
	"openai.api_key":        "Export OPENAI_API_KEY or switch llm.provider back to ollama.",
	"openai.base_url":       "Point openai.base_url (or OPENAI_BASE_URL) at a chat completions API root.",
	"llm.provider":          "Set llm.provider to ollama, anthropic or openai.",
}

// Build returns one step per phase, in the order they unlock.
func Build(s config.Settings) []Step {
	issues := s.Validate()
	phases := s.Phases()
	ready := map[config.Phase]bool{
		config.PhaseCapture: phases.Capture,
		config.PhaseNotion:  phases.Notion,
		config.PhaseExplain: phases.Explain,
	}

	steps := make([]Step, 0, len(phaseTitles))
	for _, phase := range []config.Phase{config.PhaseCapture, config.PhaseNotion, config.PhaseExplain} {
		step := Step{Phase: phase, Title: phaseTitles[phase], Ready: ready[phase]}
		if step.Ready {
			step.Description = readyText(phase, s)
		} else {
			step.Description = describe(config.IssuesFor(issues, phase))
		}
		steps = append(steps, step)
	}
	return steps
}

// Next returns the first phase that still needs setup.
func Next(steps []Step) (Step, bool) {
	for _, step := range steps {
		if !step.Ready {
			return step, true
		}
	}
	return Step{}, false
}

func readyText(phase config.Phase, s config.Settings) string {
	switch phase {
	case config.PhaseCapture:
		return fmt.Sprintf("Copies of %d+ characters become highlights.", s.Capture.MinLength)
	case config.PhaseNotion:
		return "Highlights and notes are filed under your parent page."
	case config.PhaseExplain:
		return fmt.Sprintf("Press e while reading to explain with %s (%s).", s.LLM.Provider, s.LLM.Model)
	default:
		return ""
	}
}

func describe(issues []config.Issue) string {
	if len(issues) == 0 {
		return "Needs the capture settings fixed first."
	}
	first := issues[0]
	parts := []string{fmt.Sprintf("%s %s.", first.Key, first.Message)}
	if hint, ok := hints[first.Key]; ok {
		parts = append(parts, hint)
	}
	if more := len(issues) - 1; more > 0 {
		parts = append(parts, fmt.Sprintf("(+%d more, see paperclip config show)", more))
	}
	return strings.Join(parts, " ")
}
