package llm

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/csheth/paperclip/internal/config"
)

var whitespaceRe = regexp.MustCompile(`[ \t]+`)

// Prompt renders a Request through a text/template.
type Prompt struct {
	tmpl *template.Template
}

// NewPrompt parses text, falling back to the default template when blank.
func NewPrompt(text string) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		text = config.DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// Render fills the template. Blank titles read as "the paper".
func (p *Prompt) Render(req Request) (string, error) {
	text := clipText(normalizeSpace(req.Text), maxPassageChars)
	if text == "" {
		return "", fmt.Errorf("passage is empty; nothing to explain")
	}
	data := Request{
		Text:       text,
		PaperTitle: strings.TrimSpace(req.PaperTitle),
		Context:    clipText(req.Context, maxContextChars),
	}
	if data.PaperTitle == "" {
		data.PaperTitle = "the paper"
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// normalizeSpace collapses runs of spaces that PDF viewers leave in copied
// text. Line breaks are kept.
func normalizeSpace(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
