package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/csheth/paperclip/internal/session"
)

func (m *model) View() string {
	snap := m.sess.Snapshot()
	parts := []string{}
	if m.dialog.open {
		parts = append(parts, m.dialog.View(m.layout.contentWidth))
	}
	parts = append(parts, screenFor(snap.Screen).view(m, snap), m.statusView(snap))
	return joinNonEmpty(parts)
}

func (m *model) mainMenuView(snap session.Snapshot) string {
	parts := []string{m.heroView()}
	if snap.HasActivePaper() {
		parts = append(parts, helperStyle.Render(fmt.Sprintf("Last paper: %s (stopped)", snap.ActivePaperName)))
	}
	parts = append(parts, m.keyHintsView([]keyHint{
		{"n", "New paper"},
		{"c", "Continue a paper"},
		{"q", "Quit"},
	}))
	if setup := m.setupView(); setup != "" {
		parts = append(parts, setup)
	}
	return joinNonEmpty(parts)
}

func (m *model) setupView() string {
	if len(m.config.Guide) == 0 {
		return ""
	}
	lines := []string{sectionHeaderStyle.Render("Setup")}
	for _, step := range m.config.Guide {
		mark := readyStyle.Render("✓")
		if !step.Ready {
			mark = pendingStyle.Render("•")
		}
		lines = append(lines, fmt.Sprintf("%s %s", mark, step.Title))
	}
	for _, step := range m.config.Guide {
		if !step.Ready {
			lines = append(lines, helperStyle.Render(m.layout.wrap("Next: "+step.Description)))
			break
		}
	}
	return strings.Join(lines, "\n")
}

func (m *model) readingView(snap session.Snapshot) string {
	parts := []string{heroTitleStyle.Render(m.layout.wrap(snap.ActivePaperName))}

	highlight := helperStyle.Render("Copy a passage to save it as a highlight.")
	if m.lastHighlight != "" {
		highlight = quoteStyle.Render(preview(m.lastHighlight, m.layout.contentWidth-2))
	}
	parts = append(parts, joinLines(sectionHeaderStyle.Render("Latest highlight"), highlight))

	switch {
	case m.busy[jobKindExplain]:
		parts = append(parts, fmt.Sprintf("%s Explaining…", m.spinner.View()))
	case m.renderedNote != "":
		parts = append(parts, joinLines(sectionHeaderStyle.Render("Note"), clipLines(m.renderedNote, m.layout.noteLines)))
	}

	parts = append(parts, m.keyHintsView([]keyHint{
		{"e", "Explain"},
		{"y", "Copy note"},
		{"s", "Stop"},
		{"?", "Help"},
	}))
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	return joinNonEmpty(parts)
}

func (m *model) selectionView(snap session.Snapshot) string {
	parts := []string{sectionHeaderStyle.Render("Continue a paper")}
	switch {
	case len(m.papers) == 0 && m.busy[jobKindList]:
		parts = append(parts, fmt.Sprintf("%s Loading papers…", m.spinner.View()))
	case len(m.papers) == 0:
		parts = append(parts, helperStyle.Render("No papers yet. Press Esc and start one with n."))
	default:
		start, end := visibleWindow(len(m.papers), m.cursor, m.layout.listLines)
		rows := make([]string, 0, end-start)
		for idx := start; idx < end; idx++ {
			rows = append(rows, m.paperRow(idx, m.papers[idx], snap))
		}
		parts = append(parts, strings.Join(rows, "\n"))
	}
	parts = append(parts, m.keyHintsView([]keyHint{
		{"↑/↓", "Move"},
		{"Enter", "Read"},
		{"r", "Refresh"},
		{"Esc", "Back"},
	}))
	return joinNonEmpty(parts)
}

func (m *model) paperRow(idx int, paper session.PaperInfo, snap session.Snapshot) string {
	label := preview(paper.Name, m.layout.contentWidth-16)
	var meta []string
	if paper.CreatedAt != nil {
		meta = append(meta, paper.CreatedAt.Local().Format("2006-01-02"))
	}
	if paper.Refs == nil || !paper.Refs.Complete() {
		meta = append(meta, "incomplete")
	}
	if paper.Name == snap.ActivePaperName {
		meta = append(meta, "current")
	}
	suffix := ""
	if len(meta) > 0 {
		suffix = helperStyle.Render("  " + strings.Join(meta, " · "))
	}
	if idx == m.cursor {
		return currentLineStyle.Render("▸ "+label) + suffix
	}
	return "  " + label + suffix
}

func (m *model) heroView() string {
	return joinLines(logoStyle.Render("paperclip"), taglineStyle.Render(m.layout.wrap(heroTagline)))
}

func (m *model) statusView(snap session.Snapshot) string {
	state := "○ stopped"
	if snap.IsReading {
		state = "● monitoring"
	}
	stats := []string{
		state,
		fmt.Sprintf("Highlights %d", snap.HighlightCount),
		fmt.Sprintf("Notes %d", snap.NoteCount),
	}
	if snap.LastHighlightAt != nil {
		stats = append(stats, "Last "+snap.LastHighlightAt.Local().Format("15:04:05"))
	}
	if badges := m.jobStatusBadges(); len(badges) > 0 {
		stats = append(stats, badges...)
	}
	lines := []string{statusBarStyle.Render(strings.Join(stats, "  •  "))}
	if m.infoMessage != "" {
		lines = append(lines, helperStyle.Render(m.layout.wrap(m.infoMessage)))
	}
	if m.lastError != "" {
		stamp := m.lastErrorAt.Local().Format("15:04:05")
		lines = append(lines, errorStyle.Render(m.layout.wrap(stamp+"  "+m.lastError)))
	}
	return strings.Join(lines, "\n")
}

func (m *model) jobStatusBadges() []string {
	var badges []string
	for _, kind := range jobKinds {
		switch {
		case m.busy[kind]:
			badges = append(badges, fmt.Sprintf("%s %s", m.spinner.View(), kind.label()))
		case m.failed[kind] != "":
			badges = append(badges, errorStyle.Render("✗ "+kind.label()+" failed"))
		}
	}
	return badges
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyHintsView(hints []keyHint) string {
	cells := make([]string, 0, len(hints))
	for _, hint := range hints {
		cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(hint.Key), keyDescStyle.Render(" "+hint.Description+" ")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("While reading"),
		helperStyle.Render("• every new copy long enough to count is appended to the paper's Highlights page."),
		helperStyle.Render("• e sends the latest highlight to the model and files the answer under Notes."),
		helperStyle.Render("• y puts the last note on the clipboard without capturing it again."),
		helperStyle.Render("• s stops capture and returns to the menu, Ctrl+C quits."),
	}
	return helpBoxStyle.Render(m.layout.wrap(strings.Join(lines, "\n")))
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func joinLines(parts ...string) string {
	return strings.Join(parts, "\n")
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	quoteStyle         = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#e0def4")).PaddingLeft(1).Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(accentColor)
	readyStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#a3be8c"))
	pendingStyle       = lipgloss.NewStyle().Bold(true).Foreground(accentColor)

	accentColor = lipgloss.Color("#ff8c00")

	logoStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#fff4d0")).Background(lipgloss.Color("#2b1400")).Padding(0, 1)
	heroTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	taglineStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb347")).Italic(true)
	statusBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	helpBoxStyle     = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#7f5af0")).Padding(0, 1)
	dialogBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(1, 2)
	currentLineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
)
