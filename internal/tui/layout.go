package tui

import (
	"strings"

	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	minContentWidth   = 32
	horizontalPadding = 4
	minNoteLines      = 3
	// hero, status bar, counters, highlight preview, key hints and gaps
	readingChrome = 12
)

type pageLayout struct {
	windowWidth  int
	windowHeight int
	contentWidth int
	noteLines    int
	listLines    int
}

func newPageLayout(width, height int) pageLayout {
	var l pageLayout
	l.Update(width, height)
	return l
}

func (l *pageLayout) Update(width, height int) {
	if width <= 0 {
		width = 64
	}
	if height <= 0 {
		height = 20
	}
	l.windowWidth = width
	l.windowHeight = height
	l.contentWidth = width - horizontalPadding
	if l.contentWidth < minContentWidth {
		l.contentWidth = minContentWidth
	}
	l.noteLines = height - readingChrome
	if l.noteLines < minNoteLines {
		l.noteLines = minNoteLines
	}
	l.listLines = height - 8
	if l.listLines < 3 {
		l.listLines = 3
	}
}

func (l pageLayout) wrap(text string) string {
	return wordwrap.String(text, l.contentWidth)
}

// clipLines keeps the first n lines of text, marking the cut.
func clipLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	kept := append(lines[:n:n], helperStyle.Render("… (y copies the full note)"))
	return strings.Join(kept, "\n")
}

// preview flattens text onto one line no wider than width.
func preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	return truncate.StringWithTail(flat, uint(width), "…")
}

// visibleWindow returns the [start, end) range of a list of n items that
// keeps cursor on screen with at most size rows.
func visibleWindow(n, cursor, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	if start+size > n {
		start = n - size
	}
	return start, start + size
}
