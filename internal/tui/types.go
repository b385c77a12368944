package tui

import (
	"github.com/csheth/paperclip/internal/arxiv"
	"github.com/csheth/paperclip/internal/excerpt"
	"github.com/csheth/paperclip/internal/recorder"
	"github.com/csheth/paperclip/internal/session"
)

const heroTagline = "Copy a passage while reading; paperclip files it in Notion."

const (
	dialogCharLimit   = 120
	dialogPlaceholder = "Paper title, arXiv URL or identifier…"
	highlightPreview  = 160
)

// action is the outcome of routing a key on a screen.
type action int

const (
	actionNone action = iota
	actionQuit
	actionOpenNewPaper
	actionOpenSelection
	actionStopReading
	actionExplain
	actionCopyNote
	actionToggleHelp
	actionCursorUp
	actionCursorDown
	actionChoosePaper
	actionRefreshPapers
	actionBackToMenu
)

type dialogResult int

const (
	dialogPending dialogResult = iota
	dialogSubmitted
	dialogCanceled
)

type recorderEventMsg struct {
	event recorder.Event
}

type paperLookupMsg struct {
	input string
	paper *arxiv.Paper
	err   error
}

type fullTextMsg struct {
	paper string
	doc   excerpt.Document
	err   error
}

type papersListedMsg struct {
	papers []session.PaperInfo
	err    error
}

type explainResultMsg struct {
	paper     string
	highlight string
	note      string
	err       error
}

type copyResultMsg struct {
	err error
}
